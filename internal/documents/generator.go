// =============================================================================
// LDCC1 Processor - Document Generator
// =============================================================================
//
// This module produces the procedure documents strictly one after another.
//
// PER STEP:
//   1. Check the step's required inputs are present
//   2. Render the template to PDF bytes
//   3. Ask the PathChooser where to save (default: the procedure path)
//   4. Write, sync and close the file
//   5. Confirm the file is on disk before the next step starts
//
// A cancelled save records the document as skipped. With AbortOnCancel the
// run stops there; otherwise the next step proceeds. Render and write
// failures stop the run. Documents already written are always kept.
//
// =============================================================================

package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/ginjaninja78/ldcc1-processor/internal/interest"
	"github.com/ginjaninja78/ldcc1-processor/internal/pdfwriter"
	"github.com/ginjaninja78/ldcc1-processor/internal/types"
	"github.com/ginjaninja78/ldcc1-processor/pkg/utils"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrMissingInput is wrapped by a DocumentGenerationError when a step's
// required input was not produced.
var ErrMissingInput = errors.New("required input missing")

// ErrDuplicatePath is wrapped by a DocumentGenerationError when a document
// would replace one already saved in the run, e.g. when the input spans
// more than a year and two weeks share a "Week NN" folder.
var ErrDuplicatePath = errors.New("document path already used in this run")

// DocumentGenerationError reports a document that could not be produced.
type DocumentGenerationError struct {
	Type types.DocumentType
	Path string
	Err  error
}

func (e *DocumentGenerationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to generate %s document %s: %v", e.Type, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to generate %s document: %v", e.Type, e.Err)
}

func (e *DocumentGenerationError) Unwrap() error {
	return e.Err
}

// =============================================================================
// GENERATOR
// =============================================================================

// Input is the data the procedure documents are drawn from.
type Input struct {
	// Ledgers in ascending week order.
	Ledgers []types.WeeklyLedger

	// Reconciliations has one result per ledger, same order.
	Reconciliations []types.ReconciliationResult

	// Interest and MonthlyReconciliation are set for monthly runs.
	Interest              *interest.Statement
	MonthlyReconciliation *types.ReconciliationResult
}

// Options configures a Generator.
type Options struct {
	// Procedure is the ordered list of steps.
	Procedure []Step

	// AbortOnCancel stops generation when a save is cancelled.
	AbortOnCancel bool

	// ProcessingDate stamps every document and fixes the PDF dates.
	ProcessingDate time.Time
}

// Generator produces procedure documents.
type Generator struct {
	layout  *utils.RunLayout
	chooser PathChooser
	options Options
	logger  zerolog.Logger

	// saved holds every path written by this generator.
	saved map[string]bool
}

// NewGenerator creates a Generator. A nil chooser accepts every default
// path.
func NewGenerator(layout *utils.RunLayout, chooser PathChooser, options Options, logger zerolog.Logger) *Generator {
	if chooser == nil {
		chooser = AutoChooser{}
	}
	return &Generator{layout: layout, chooser: chooser, options: options, logger: logger, saved: make(map[string]bool)}
}

// Generate runs the procedure.
//
// RETURNS:
//   - Every artifact produced or skipped, in procedure order, including on
//     error.
//   - A *DocumentGenerationError, ErrSaveCancelled (AbortOnCancel) or the
//     context error.
func (g *Generator) Generate(ctx context.Context, in Input) ([]types.DocumentArtifact, error) {
	if err := g.checkWeekFolders(in.Ledgers); err != nil {
		return nil, err
	}

	var artifacts []types.DocumentArtifact
	names := clientNames(in.Ledgers)

	run := func(step Step, d stepData, dir, source string) error {
		artifact, err := g.runStep(ctx, step, d, dir, source)
		if artifact != nil {
			artifacts = append(artifacts, *artifact)
		}
		return err
	}

	for i := range in.Ledgers {
		l := &in.Ledgers[i]
		d := stepData{ledger: l, names: names, processed: g.options.ProcessingDate}
		if i < len(in.Reconciliations) {
			d.recon = &in.Reconciliations[i]
		}

		for _, step := range g.options.Procedure {
			if step.Scope != ScopeWeekly {
				continue
			}
			if err := run(step, d, g.layout.WeekDir(l.Key.Label()), l.Key.Label()); err != nil {
				return artifacts, err
			}
		}
	}

	for _, step := range g.options.Procedure {
		if step.Scope == ScopeWeekly {
			continue
		}
		d := stepData{
			interest:     in.Interest,
			monthlyRecon: in.MonthlyReconciliation,
			history:      in.Ledgers,
			names:        names,
			processed:    g.options.ProcessingDate,
		}
		dir, source := g.layout.Reports, g.options.ProcessingDate.Format("2006-01")
		if in.Interest != nil {
			source = in.Interest.Period
			if step.Folder == FolderMonthly {
				dir = g.layout.MonthlyDir(in.Interest.Week.Label())
			}
		}
		if err := run(step, d, dir, source); err != nil {
			return artifacts, err
		}
	}

	return artifacts, nil
}

// runStep produces one document. The artifact is nil when nothing was
// attempted.
func (g *Generator) runStep(ctx context.Context, step Step, d stepData, dir, source string) (*types.DocumentArtifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if missing := missingRequirement(step, d); missing != "" {
		return nil, &DocumentGenerationError{Type: step.Type, Err: fmt.Errorf("%w: %s", ErrMissingInput, missing)}
	}

	weekLabel := ""
	if d.ledger != nil {
		weekLabel = d.ledger.Key.Label()
	}
	defaultPath := filepath.Join(dir, step.Name(weekLabel, g.options.ProcessingDate.Format("02012006")))

	doc := step.build(d)
	opts := pdfwriter.DefaultGenerateOptions()
	opts.CreationDate = g.options.ProcessingDate
	content, err := pdfwriter.GenerateWithOptions(doc, opts)
	if err != nil {
		return nil, &DocumentGenerationError{Type: step.Type, Path: defaultPath, Err: err}
	}

	artifact, err := g.Save(ctx, step.Type, doc.Title, source, defaultPath, content)
	return &artifact, err
}

// Save asks the chooser for a path and writes content there, confirming it
// on disk. It is also used for documents outside the procedure, such as the
// payment authorization.
func (g *Generator) Save(ctx context.Context, docType types.DocumentType, title, source, defaultPath string, content []byte) (types.DocumentArtifact, error) {
	artifact := types.DocumentArtifact{
		Type:        docType,
		Path:        defaultPath,
		Source:      source,
		GeneratedAt: g.options.ProcessingDate,
	}

	path, err := g.chooser.ChoosePath(ctx, Proposal{Type: docType, Title: title, DefaultPath: defaultPath})
	if errors.Is(err, ErrSaveCancelled) {
		artifact.Status = types.ArtifactSkipped
		g.logger.Warn().Str("document", string(docType)).Str("source", source).Msg("Document save cancelled")
		if g.options.AbortOnCancel {
			return artifact, fmt.Errorf("%s for %s: %w", docType, source, ErrSaveCancelled)
		}
		return artifact, nil
	}
	if err != nil {
		artifact.Status = types.ArtifactSkipped
		return artifact, &DocumentGenerationError{Type: docType, Path: defaultPath, Err: err}
	}
	artifact.Path = path

	if g.saved[filepath.Clean(path)] {
		artifact.Status = types.ArtifactSkipped
		return artifact, &DocumentGenerationError{Type: docType, Path: path, Err: ErrDuplicatePath}
	}

	err = utils.WriteFile(ctx, path, utils.Overwrite, func(w io.Writer) error {
		_, err := w.Write(content)
		return err
	})
	if err != nil {
		artifact.Status = types.ArtifactSkipped
		return artifact, &DocumentGenerationError{Type: docType, Path: path, Err: err}
	}

	artifact.Status = types.ArtifactWritten
	g.saved[filepath.Clean(path)] = true
	g.logger.Info().Str("document", string(docType)).Str("source", source).Str("path", path).Msg("Document written")

	return artifact, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// checkWeekFolders fails before anything is written when two ledgers
// would share a week folder.
func (g *Generator) checkWeekFolders(ledgers []types.WeeklyLedger) error {
	seen := make(map[string]types.WeekKey, len(ledgers))
	for _, l := range ledgers {
		label := l.Key.Label()
		if prev, ok := seen[label]; ok {
			return &DocumentGenerationError{
				Type: TypeBalanceBefore,
				Path: g.layout.WeekDir(label),
				Err:  fmt.Errorf("%w: weeks %s and %s both use %q", ErrDuplicatePath, prev, l.Key, label),
			}
		}
		seen[label] = l.Key
	}
	return nil
}

func missingRequirement(step Step, d stepData) Requirement {
	for _, r := range step.Requires {
		switch {
		case r == RequiresLedger && d.ledger == nil,
			r == RequiresReconciliation && d.recon == nil,
			r == RequiresInterest && d.interest == nil,
			r == RequiresHistory && len(d.history) == 0,
			r == RequiresMonthlyReconciliation && d.monthlyRecon == nil:
			return r
		}
	}
	return ""
}

// clientNames returns the first non-blank name seen for each client.
func clientNames(ledgers []types.WeeklyLedger) map[string]string {
	names := make(map[string]string)
	for _, l := range ledgers {
		for _, r := range l.Records {
			if _, ok := names[r.ClientID]; !ok && r.ClientName != "" {
				names[r.ClientID] = r.ClientName
			}
		}
	}
	return names
}
