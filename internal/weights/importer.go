package weights

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/skillgrid/assessor/internal/catalog"
)

// Mode selects how an import treats competencies.
type Mode string

const (
	// ModeCreate inserts competencies missing from the specialization and
	// leaves existing ones untouched.
	ModeCreate Mode = "create"
	// ModeUpdate sets the weight of existing competencies only.
	ModeUpdate Mode = "update"
)

// Report summarizes an import.
type Report struct {
	Mode           Mode     `json:"mode"`
	Specialization string   `json:"specialization,omitempty"`
	Created        []string `json:"created,omitempty"`
	Updated        []string `json:"updated,omitempty"`
	Existing       []string `json:"existing,omitempty"`
	NotFound       []string `json:"not_found,omitempty"`
}

// Importer applies workbook rows to the catalog.
type Importer struct {
	w catalog.Writer
}

// NewImporter creates an importer writing through w.
func NewImporter(w catalog.Writer) *Importer {
	return &Importer{w: w}
}

// Import applies rows in the given mode. Create requires a specialization;
// update with an empty specialization matches competencies in every
// specialization.
func (im *Importer) Import(ctx context.Context, mode Mode, specialization string, rows []Row) (Report, error) {
	switch mode {
	case ModeCreate:
		return im.create(ctx, specialization, rows)
	case ModeUpdate:
		return im.update(ctx, specialization, rows)
	default:
		return Report{}, fmt.Errorf("unknown import mode %q", mode)
	}
}

func (im *Importer) create(ctx context.Context, specialization string, rows []Row) (Report, error) {
	report := Report{Mode: ModeCreate, Specialization: specialization}
	if specialization == "" {
		return report, fmt.Errorf("create mode requires a specialization")
	}

	spec, err := im.w.SpecializationByName(ctx, specialization)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return report, fmt.Errorf("specialization %q not found; load its question bank first: %w", specialization, err)
		}
		return report, err
	}

	existing, err := im.index(ctx, specialization)
	if err != nil {
		return report, err
	}

	for _, row := range rows {
		if _, ok := existing[Key(row.Name)]; ok {
			report.Existing = append(report.Existing, row.Name)
			continue
		}
		if _, _, err := im.w.EnsureCompetency(ctx, spec.ID, row.Name, row.Normalized); err != nil {
			return report, fmt.Errorf("create competency %q: %w", row.Name, err)
		}
		report.Created = append(report.Created, row.Name)
	}

	slog.Info("competency weights imported",
		"mode", ModeCreate,
		"specialization", specialization,
		"created", len(report.Created),
		"existing", len(report.Existing),
	)
	return report, nil
}

func (im *Importer) update(ctx context.Context, specialization string, rows []Row) (Report, error) {
	report := Report{Mode: ModeUpdate, Specialization: specialization}

	existing, err := im.index(ctx, specialization)
	if err != nil {
		return report, err
	}

	for _, row := range rows {
		matches, ok := existing[Key(row.Name)]
		if !ok {
			report.NotFound = append(report.NotFound, row.Name)
			continue
		}
		for _, rec := range matches {
			if err := im.w.SetWeight(ctx, rec.ID, row.Normalized); err != nil {
				return report, fmt.Errorf("update competency %q: %w", rec.Name, err)
			}
		}
		report.Updated = append(report.Updated, row.Name)
	}

	if len(report.NotFound) > 0 {
		slog.Warn("competencies not found", "names", report.NotFound)
	}
	slog.Info("competency weights imported",
		"mode", ModeUpdate,
		"specialization", specialization,
		"updated", len(report.Updated),
		"not_found", len(report.NotFound),
	)
	return report, nil
}

// List returns competencies with their weights, grouped by specialization.
func (im *Importer) List(ctx context.Context, specialization string) ([]catalog.CompetencyRecord, error) {
	return im.w.ListCompetencies(ctx, specialization)
}

func (im *Importer) index(ctx context.Context, specialization string) (map[string][]catalog.CompetencyRecord, error) {
	records, err := im.w.ListCompetencies(ctx, specialization)
	if err != nil {
		return nil, fmt.Errorf("list competencies: %w", err)
	}
	out := make(map[string][]catalog.CompetencyRecord, len(records))
	for _, r := range records {
		k := Key(r.Name)
		out[k] = append(out[k], r)
	}
	return out, nil
}
