package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"permitflow/internal/domain"
	"permitflow/internal/form"
	"permitflow/internal/service"
)

// answers is an application described on disk. File paths are relative to the answers file.
type answers struct {
	Form        domain.FormType   `yaml:"form"`
	ApplicantID string            `yaml:"applicant_id"`
	Fields      map[string]string `yaml:"fields"`
	Flags       map[string]bool   `yaml:"flags"`
	Files       map[string]string `yaml:"files"`
	// IDs are reference numbers to verify, keyed by attachment.
	IDs map[string]string `yaml:"ids"`

	dir string
}

func loadAnswers(path string) (*answers, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading answers: %w", err)
	}
	var a answers
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parsing answers %s: %w", path, err)
	}
	if a.Form == "" {
		return nil, fmt.Errorf("answers %s: form is required", path)
	}
	a.dir = filepath.Dir(path)
	return &a, nil
}

// open starts a session for the answers and fills it in. Verification results are logged, not
// fatal: a failed check surfaces later as a validation failure.
func (a *answers) open(ctx context.Context, svc service.WizardService, maxBytes int64) (*service.SessionView, error) {
	view, err := svc.CreateSession(ctx, &service.CreateSessionInput{FormType: a.Form, ApplicantID: a.ApplicantID})
	if err != nil {
		return nil, err
	}
	id := view.ID

	if len(a.Fields) > 0 || len(a.Flags) > 0 {
		if _, err := svc.SetFields(ctx, id, &service.SetFieldsInput{Values: a.Fields, Flags: a.Flags}); err != nil {
			return nil, err
		}
	}

	for _, field := range sortedKeys(a.Files) {
		file, err := a.readFile(a.Files[field], maxBytes)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", field, err)
		}
		if _, err := svc.AttachFile(ctx, id, field, file); err != nil {
			return nil, fmt.Errorf("attaching %s: %w", field, err)
		}
	}

	if err := a.verifyIDs(ctx, svc, id); err != nil {
		return nil, err
	}
	return svc.GetSession(ctx, id)
}

// verifyIDs checks every reference number concurrently; attachments are independent.
func (a *answers) verifyIDs(ctx context.Context, svc service.WizardService, id string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, attachment := range sortedKeys(a.IDs) {
		ref := a.IDs[attachment]
		g.Go(func() error {
			res, err := svc.VerifyAttachment(ctx, id, attachment, ref)
			if err != nil {
				return fmt.Errorf("verifying %s: %w", attachment, err)
			}
			log.Info("permitctl: reference checked",
				zap.String("attachment", attachment), zap.Bool("verified", res.Success), zap.String("message", res.Message))
			return nil
		})
	}
	return g.Wait()
}

func (a *answers) readFile(path string, maxBytes int64) (*form.File, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(a.dir, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return form.ReadFile(filepath.Base(path), f, maxBytes)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
