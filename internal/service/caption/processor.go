package caption

import (
	"context"

	"github.com/rs/zerolog"

	"live-caption-service/internal/models"
	"live-caption-service/internal/service/translate"
)

// Processor wires recognition output into the caption path for one call.
// Interims go out immediately with translation placeholders; finals wait for
// the full translation batch and are dropped when it fails.
type Processor struct {
	meetingID   string
	assembler   *Assembler
	batch       *translate.Batch
	distributor *Distributor
	targetLangs []string
	log         zerolog.Logger
}

func NewProcessor(meetingID string, assembler *Assembler, batch *translate.Batch, distributor *Distributor, targetLangs []string, log zerolog.Logger) *Processor {
	return &Processor{
		meetingID:   meetingID,
		assembler:   assembler,
		batch:       batch,
		distributor: distributor,
		targetLangs: targetLangs,
		log:         log.With().Str("meetingId", meetingID).Logger(),
	}
}

func (p *Processor) HandleInterim(ctx context.Context, u models.Utterance) {
	text := p.assembler.Build(u.SourceLang, u.Text, nil)
	p.distributor.Distribute(ctx, p.meetingID, u, text)
}

func (p *Processor) HandleFinal(ctx context.Context, u models.Utterance) {
	translations, err := p.batch.Translate(ctx, u.Text, u.SourceLang, p.targetLangs)
	if err != nil {
		// incomplete caption: publishing a partial language set would leave
		// some viewers with a stuck placeholder, so drop the final entirely
		p.log.Error().Err(err).Str("sourceLang", u.SourceLang).Msg("translation batch failed, final caption dropped")
		return
	}
	text := p.assembler.Build(u.SourceLang, u.Text, translations)
	p.distributor.Distribute(ctx, p.meetingID, u, text)
}
