package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/dgallion1/lawsearch/internal/chunker"
	"github.com/dgallion1/lawsearch/internal/division"
	"github.com/dgallion1/lawsearch/internal/embedding"
	"github.com/dgallion1/lawsearch/internal/index"
	"github.com/dgallion1/lawsearch/internal/parser"
	"github.com/dgallion1/lawsearch/internal/segment"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// IngestConfig configures an Ingestor.
type IngestConfig struct {
	DataDir       string
	Chunk         chunker.Config
	MaxConcurrent int // concurrent division rebuilds
	PDFFallback   bool
}

// Ingestor turns the raw document store into division indices.
type Ingestor struct {
	cfg       IngestConfig
	indices   *index.Manager
	vocab     *division.Vocabulary
	segmenter *segment.Segmenter
	log       *zap.Logger
}

func NewIngestor(cfg IngestConfig, indices *index.Manager, vocab *division.Vocabulary, seg *segment.Segmenter, log *zap.Logger) *Ingestor {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Ingestor{cfg: cfg, indices: indices, vocab: vocab, segmenter: seg, log: log}
}

// Process runs the full ingest for run: scan, parse, segment, then chunk and
// rebuild every matched division with embedder. A division that fails to
// rebuild is recorded on the run; the others continue.
func (in *Ingestor) Process(ctx context.Context, run *Run, embedder embedding.Embedder) {
	log := in.log.With(zap.String("run_id", run.ID))

	if run.ClearExisting {
		if err := in.indices.Purge(); err != nil {
			log.Error("clear existing indices failed", zap.Error(err))
			run.AddError(fmt.Sprintf("clear: %s", err))
			run.SetStatus(StatusFailed, "clearing")
			return
		}
	}

	// Phase 1: scan and segment.
	run.SetStatus(StatusScanning, "scanning")
	files, err := in.scan()
	if err != nil {
		log.Error("scan failed", zap.Error(err))
		run.AddError(err.Error())
		run.SetStatus(StatusFailed, "scanning")
		return
	}
	log.Info("documents found", zap.Int("files", len(files)), zap.String("dir", in.cfg.DataDir))

	var (
		work   []division.Division
		bySlot = make(map[string]int)
	)
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			run.AddError(err.Error())
			run.SetStatus(StatusFailed, "scanning")
			return
		}
		divs, report, err := in.segmentFile(path)
		if err != nil {
			log.Error("document skipped", zap.String("file", path), zap.Error(err))
			run.AddError(fmt.Sprintf("%s: %s", filepath.Base(path), err))
			continue
		}
		run.AddDocument(report)
		for _, d := range divs {
			if i, dup := bySlot[d.Label]; dup {
				log.Warn("division found in more than one document; keeping the later",
					zap.String("label", d.Label),
					zap.String("earlier", work[i].SourceDocumentID),
					zap.String("later", d.SourceDocumentID))
				work[i] = d
				continue
			}
			bySlot[d.Label] = len(work)
			work = append(work, d)
		}
	}

	// Phase 2: chunk, embed and rebuild with bounded concurrency.
	run.SetStatus(StatusIndexing, "indexing")
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(in.cfg.MaxConcurrent)
	for _, d := range work {
		g.Go(func() error {
			run.AddDivision(in.rebuild(gctx, d, embedder, log))
			return nil
		})
	}
	_ = g.Wait()

	run.Finish()
	snap := run.Snapshot()
	log.Info("ingest finished",
		zap.String("status", string(snap.Status)),
		zap.Int("divisions_processed", snap.DivisionsProcessed),
		zap.Int("errors", len(snap.Errors)),
		zap.Float64("seconds", snap.ProcessingTime))
}

func (in *Ingestor) rebuild(ctx context.Context, d division.Division, embedder embedding.Embedder, log *zap.Logger) DivisionReport {
	store, _ := in.vocab.StoreFor(d.Label)
	report := DivisionReport{Label: d.Label, Store: store, Source: d.SourceDocumentID}

	chunks := chunker.ChunkDivision(d.Label, d.RawText, in.cfg.Chunk)
	report.Chunks = len(chunks)
	for _, c := range chunks {
		report.Tokens += chunker.EstimateTokens(c.Text)
	}

	if err := in.indices.Rebuild(ctx, d.Label, chunks, embedder); err != nil {
		log.Error("division rebuild failed", zap.String("label", d.Label), zap.Error(err))
		report.Error = err.Error()
		return report
	}
	log.Info("division indexed",
		zap.String("label", d.Label),
		zap.Int("chunks", report.Chunks),
		zap.Int("estimated_tokens", report.Tokens))
	return report
}

// segmentFile parses one document and returns the divisions whose store
// name is in the vocabulary.
func (in *Ingestor) segmentFile(path string) ([]division.Division, DocumentReport, error) {
	report := DocumentReport{Source: filepath.Base(path)}

	p, err := parser.ForFile(path, in.cfg.PDFFallback)
	if err != nil {
		return nil, report, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, report, fmt.Errorf("read: %w", err)
	}
	doc, err := p.Parse(bytes.NewReader(data), path)
	if err != nil {
		return nil, report, fmt.Errorf("parse: %w", err)
	}
	text := doc.Text()
	report.ContentHash = ContentHashHex([]byte(text))

	segs, err := in.segmenter.Split(text, doc.Source)
	if err != nil {
		return nil, report, fmt.Errorf("segment: %w", err)
	}
	report.Segments = len(segs)

	var out []division.Division
	for _, seg := range segment.Ordered(segs) {
		store := division.SafeName(seg.Label)
		label, ok := in.vocab.LabelForStore(store)
		if !ok {
			report.Skipped++
			in.log.Info("segment not in vocabulary, skipped",
				zap.String("segment", seg.Label),
				zap.String("store", store))
			continue
		}
		out = append(out, division.Division{
			Label:            label,
			SourceDocumentID: doc.Source,
			RawText:          seg.Text,
		})
	}
	return out, report, nil
}

// scan lists supported documents under the data directory in name order.
func (in *Ingestor) scan() ([]string, error) {
	entries, err := os.ReadDir(in.cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("reading data dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !parser.IsSupportedExtension(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(in.cfg.DataDir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
