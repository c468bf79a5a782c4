package rag

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	wl "github.com/abadojack/whatlanggo"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const langConfidence = 0.5

// Ingester populates the Repository from a fixed list of source URLs.
type Ingester struct {
	scraper    Scraper
	splitter   Splitter
	embeddings EmbeddingsClient
	repo       Repository
	spec       CollectionSpec
	log        zerolog.Logger
}

func NewIngester(
	scraper Scraper,
	splitter Splitter,
	embeddings EmbeddingsClient,
	repo Repository,
	spec CollectionSpec,
	log zerolog.Logger,
) *Ingester {
	return &Ingester{
		scraper:    scraper,
		splitter:   splitter,
		embeddings: embeddings,
		repo:       repo,
		spec:       spec,
		log:        log,
	}
}

// Run ensures the collection exists and ingests every URL in order. Only a
// collection error aborts the run; URL and chunk failures are logged and counted.
func (in *Ingester) Run(ctx context.Context, urls []string) (*IngestReport, error) {
	if err := in.repo.EnsureCollection(ctx, in.spec); err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	in.log.Info().Int("dimension", in.spec.Dimension).Str("metric", string(in.spec.Metric)).Msg("collection ready")

	report := &IngestReport{URLs: len(urls), FailedURLs: []string{}}
	for _, u := range urls {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := in.ingestURL(ctx, u, report); err != nil {
			in.log.Error().Err(err).Str("url", u).Msg("skipping source")
			report.FailedURLs = append(report.FailedURLs, u)
		}
	}

	return report, nil
}

// Preview scrapes and splits every URL without embedding or touching the store.
func (in *Ingester) Preview(ctx context.Context, urls []string) (*IngestReport, error) {
	report := &IngestReport{URLs: len(urls), FailedURLs: []string{}}
	for _, u := range urls {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		chunks, err := in.fetchChunks(ctx, u)
		if err != nil {
			in.log.Error().Err(err).Str("url", u).Msg("skipping source")
			report.FailedURLs = append(report.FailedURLs, u)
			continue
		}
		report.Chunks += len(chunks)
	}
	return report, nil
}

func (in *Ingester) fetchChunks(ctx context.Context, sourceURL string) ([]string, error) {
	content, err := in.scraper.Scrape(ctx, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("scrape: %w", err)
	}

	chunks, err := in.splitter.SplitText(content)
	if err != nil {
		return nil, fmt.Errorf("split: %w", err)
	}
	in.log.Info().Str("url", sourceURL).Int("chars", utf8.RuneCountInString(content)).Int("chunks", len(chunks)).Msg("scraped")
	return chunks, nil
}

func (in *Ingester) ingestURL(ctx context.Context, sourceURL string, report *IngestReport) error {
	chunks, err := in.fetchChunks(ctx, sourceURL)
	if err != nil {
		return err
	}

	report.Chunks += len(chunks)
	for i, chunk := range chunks {
		rec, err := in.ingestChunk(ctx, sourceURL, i, chunk)
		if err != nil {
			report.FailedChunks++
			in.log.Error().Err(err).Str("url", sourceURL).Int("chunk", i).Msg("error inserting chunk")
			continue
		}
		report.Inserted++
		in.log.Info().
			Str("id", rec.ID).
			Str("url", sourceURL).
			Int("chunk", i).
			Int("len", len(rec.Text)).
			Msg("inserted")
	}

	return nil
}

func (in *Ingester) ingestChunk(ctx context.Context, sourceURL string, index int, chunk string) (*Record, error) {
	vecs, err := in.embeddings.EmbedDocuments(ctx, []string{chunk})
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed: got %d vectors for 1 text", len(vecs))
	}

	rec := &Record{
		ID:     RecordID(sourceURL, index),
		Text:   chunk,
		Source: sourceURL,
		Lang:   detectLang(chunk),
		Vector: vecs[0],
	}
	if err := in.repo.Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("insert: %w", err)
	}
	return rec, nil
}

// RecordID is stable per source URL and chunk position, so re-ingesting a page
// overwrites its previous records.
func RecordID(sourceURL string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s#%d", sourceURL, index))).String()
}

func detectLang(s string) string {
	info := wl.Detect(s)
	if info.Confidence < langConfidence {
		return ""
	}
	return strings.ToLower(info.Lang.Iso6391())
}
