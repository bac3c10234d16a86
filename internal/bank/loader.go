package bank

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/skillgrid/assessor/internal/catalog"
	"github.com/skillgrid/assessor/internal/model"
)

// DefaultWeight is given to competencies first seen in a bank file.
const DefaultWeight = 1.0

// FileReport summarizes one imported file.
type FileReport struct {
	Path            string `json:"path"`
	Specialization  string `json:"specialization"`
	Themes          int    `json:"themes"`
	Questions       int    `json:"questions"`
	NewCompetencies int    `json:"new_competencies"`
}

// SkippedFile is a file that failed parsing or validation.
type SkippedFile struct {
	Path string `json:"path"`
	Err  error  `json:"-"`
}

// Report summarizes a directory import.
type Report struct {
	Files   []FileReport  `json:"files"`
	Skipped []SkippedFile `json:"skipped"`
}

// Questions returns the number of questions imported across all files.
func (r Report) Questions() int {
	n := 0
	for _, f := range r.Files {
		n += f.Questions
	}
	return n
}

// Loader writes bank files into a catalog.
type Loader struct {
	parser *Parser
	w      catalog.Writer
}

// NewLoader creates a loader writing through w.
func NewLoader(w catalog.Writer) (*Loader, error) {
	if w == nil {
		return nil, fmt.Errorf("catalog writer is nil")
	}
	p, err := NewParser()
	if err != nil {
		return nil, err
	}
	return &Loader{parser: p, w: w}, nil
}

// LoadDir imports every bank file under root in lexical order. Files that
// fail to parse or validate are logged and reported as skipped; catalog write
// errors abort the walk.
func (l *Loader) LoadDir(ctx context.Context, root string) (Report, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if IsBankFile(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return Report{}, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(paths)

	var report Report
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return report, fmt.Errorf("read %s: %w", path, err)
		}
		f, err := l.parser.Parse(path, data)
		if err != nil {
			slog.Warn("skipping invalid bank file", "path", path, "error", err)
			report.Skipped = append(report.Skipped, SkippedFile{Path: path, Err: err})
			continue
		}
		fr, err := l.Import(ctx, path, f)
		if err != nil {
			return report, err
		}
		report.Files = append(report.Files, fr)
	}

	slog.Info("question bank loaded",
		"root", root,
		"files", len(report.Files),
		"skipped", len(report.Skipped),
		"questions", report.Questions(),
	)
	return report, nil
}

// LoadFile parses and imports a single file.
func (l *Loader) LoadFile(ctx context.Context, path string) (FileReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileReport{}, fmt.Errorf("read %s: %w", path, err)
	}
	f, err := l.parser.Parse(path, data)
	if err != nil {
		return FileReport{}, err
	}
	return l.Import(ctx, path, f)
}

// Import writes a parsed file: profile and specialization, then for each
// level its themes as topics under their competencies, then the questions.
func (l *Loader) Import(ctx context.Context, path string, f *File) (FileReport, error) {
	fr := FileReport{Path: path, Specialization: f.Specialization}

	specID, err := l.w.EnsureSpecialization(ctx, f.Profile, f.Specialization, f.FileName)
	if err != nil {
		return fr, fmt.Errorf("%s: %w", path, err)
	}

	comps := make(map[string]int64)
	topics := make(map[int64]map[string]int64)
	for _, lb := range f.levels() {
		for _, th := range lb.Themes {
			compID, ok := comps[th.Competency]
			if !ok {
				var created bool
				compID, created, err = l.w.EnsureCompetency(ctx, specID, th.Competency, DefaultWeight)
				if err != nil {
					return fr, fmt.Errorf("%s: competency %q: %w", path, th.Competency, err)
				}
				comps[th.Competency] = compID
				topics[compID] = make(map[string]int64)
				if created {
					fr.NewCompetencies++
				}
			}

			topicID, ok := topics[compID][th.Theme]
			if !ok {
				topicID, err = l.w.EnsureTopic(ctx, compID, th.Theme)
				if err != nil {
					return fr, fmt.Errorf("%s: theme %q: %w", path, th.Theme, err)
				}
				topics[compID][th.Theme] = topicID
				fr.Themes++
			}

			for _, q := range th.Questions {
				_, err := l.w.AddQuestion(ctx, model.Question{
					TopicID:       topicID,
					Level:         lb.level,
					Text:          q.Question,
					Options:       [4]string{q.Var1, q.Var2, q.Var3, q.Var4},
					CorrectAnswer: q.Correct(),
				})
				if err != nil {
					return fr, fmt.Errorf("%s: question in theme %q: %w", path, th.Theme, err)
				}
				fr.Questions++
			}
		}
	}

	slog.Info("bank file imported",
		"path", path,
		"specialization", f.Specialization,
		"themes", fr.Themes,
		"questions", fr.Questions,
		"new_competencies", fr.NewCompetencies,
	)
	return fr, nil
}
