package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"permitflow/internal/domain"
	"permitflow/internal/email/noop"
	"permitflow/internal/extraction"
	"permitflow/internal/form"
	"permitflow/internal/formdef"
	"permitflow/internal/ocr"
	"permitflow/internal/ocr/pdftext"
	"permitflow/internal/ocr/pdftoppm"
	"permitflow/internal/ocr/providers"
	"permitflow/internal/port"
	"permitflow/internal/preview"
	"permitflow/internal/service"
	"permitflow/internal/storage/memory"
	"permitflow/internal/submission"
	"permitflow/internal/verification"
)

var (
	reviewOut     string
	submitYes     bool
	rasterizerBin string
)

var formsCmd = &cobra.Command{
	Use:   "forms [type]",
	Short: "List the permit forms, or print one form's steps and fields",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runForms,
}

var validateCmd = &cobra.Command{
	Use:   "validate <answers.yaml>",
	Short: "Check every step of an application without submitting it",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

var verifyCmd = &cobra.Command{
	Use:   "verify <clearance|tax> <id>",
	Short: "Check a clearance or business tax reference against the permit office",
	Args:  cobra.ExactArgs(2),
	RunE:  runVerify,
}

var extractCmd = &cobra.Command{
	Use:   "extract <document-kind> <file>",
	Short: "Read a document with OCR and classify it (clearance, tax_receipt, fire_certificate, identity)",
	Args:  cobra.ExactArgs(2),
	RunE:  runExtract,
}

var reviewCmd = &cobra.Command{
	Use:   "review <answers.yaml>",
	Short: "Export an application for review as .xlsx or .csv",
	Args:  cobra.ExactArgs(1),
	RunE:  runReview,
}

var submitCmd = &cobra.Command{
	Use:   "submit <answers.yaml>",
	Short: "Submit an application to the permit office",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubmit,
}

func init() {
	reviewCmd.Flags().StringVarP(&reviewOut, "output", "o", "", "output file (.xlsx or .csv); defaults to a name derived from the application")
	submitCmd.Flags().BoolVar(&submitYes, "yes", false, "confirm the declaration (required)")
	extractCmd.Flags().StringVar(&rasterizerBin, "rasterizer", "", "override the pdftoppm binary")
}

// newWizardService wires an in-process wizard against the configured permit office. Previews are
// kept in memory and acknowledgment emails are only logged.
func newWizardService() service.WizardService {
	verifier := verification.NewClient(cfg.Endpoints, cfg.Verification, nil, log)
	var extractor service.Extractor
	if ad, err := newExtractor(); err == nil {
		extractor = ad
	}
	return service.NewWizardService(service.WizardDeps{
		Verifier:  verifier,
		Extractor: extractor,
		Submitter: submission.NewCoordinator(cfg.Endpoints, cfg.Submission, nil, log),
		Previews:  preview.NewManager(memory.NewStore("memory://previews"), "previews", cfg.S3.PresignExpiry, log),
		Email:     noop.NewNoopSender(cfg.Email.PortalURL, log),
		Logger:    log,
	}, service.WizardConfig{
		Strict:         cfg.Verification.Strict,
		RedirectDelay:  time.Millisecond,
		MaxUploadBytes: maxUploadBytes(),
	})
}

func newExtractor() (*extraction.Adapter, error) {
	providers.Register()
	engines, err := ocr.NewEngineFactory(&cfg.OCR, log)
	if err != nil {
		return nil, err
	}
	binary := cfg.Rasterizer.Binary
	if rasterizerBin != "" {
		binary = rasterizerBin
	}
	return extraction.NewAdapter(engines, pdftoppm.New(binary), cfg.OCR, nil, log).WithTextLayer(pdftext.New()), nil
}

func maxUploadBytes() int64 {
	return cfg.Upload.MaxFileSizeMB << 20
}

func runForms(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if len(args) == 0 {
		for _, t := range formdef.Types() {
			def, err := formdef.Get(t)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%-10s %s (%d steps)\n", t, def.Title, def.StepCount())
		}
		return nil
	}
	def, err := formdef.Get(domain.FormType(args[0]))
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	defer func() { _ = enc.Close() }()
	return enc.Encode(def)
}

func runValidate(cmd *cobra.Command, args []string) error {
	a, err := loadAnswers(args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	svc := newWizardService()
	defer svc.Close()

	view, err := a.open(ctx, svc, maxUploadBytes())
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	failed := 0
	for step := 1; step <= view.Wizard.StepCount; step++ {
		res, err := svc.ValidateStep(ctx, view.ID, step)
		if err != nil {
			return err
		}
		status := "ok"
		if !res.OK {
			status = "FAIL"
			failed++
		}
		fmt.Fprintf(tw, "step %d\t%s\t%s\n", step, status, res.Message)
		for _, key := range sortedKeys(res.FieldErrors) {
			fmt.Fprintf(tw, "\t\t%s: %s\n", key, res.FieldErrors[key])
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d steps incomplete", failed, view.Wizard.StepCount)
	}
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	kind := domain.VerifyKind(args[0])
	var v port.IDVerifier = verification.NewClient(cfg.Endpoints, cfg.Verification, nil, log).ForSession(verification.NewCache())
	res := v.VerifyID(cmd.Context(), kind, args[1])
	fmt.Fprintln(cmd.OutOrStdout(), res.Message)
	if res.CrossRefID != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "related id: %s\n", res.CrossRefID)
	}
	if !res.Success {
		return errors.New("not verified")
	}
	return nil
}

func runExtract(cmd *cobra.Command, args []string) error {
	adapter, err := newExtractor()
	if err != nil {
		return fmt.Errorf("text extraction unavailable: %w", err)
	}
	f, err := os.Open(args[1])
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	file, err := form.ReadFile(filepath.Base(args[1]), f, maxUploadBytes())
	if err != nil {
		return err
	}

	out := adapter.ExtractAndClassify(cmd.Context(), domain.DocumentKind(args[0]), file, func(pct int) {
		log.Debug("permitctl: extraction progress", zap.Int("percent", pct))
	})
	if out.Error != "" {
		return errors.New(out.Error)
	}
	w := cmd.OutOrStdout()
	fmt.Fprintln(w, out.Message)
	fmt.Fprintln(w, "---")
	fmt.Fprintln(w, strings.TrimSpace(out.ExtractedText))
	if !out.IsValid {
		return errors.New("document did not match the expected type")
	}
	return nil
}

func runReview(cmd *cobra.Command, args []string) error {
	a, err := loadAnswers(args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	svc := newWizardService()
	defer svc.Close()

	view, err := a.open(ctx, svc, maxUploadBytes())
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(a.dir, ".review-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	var name string
	if strings.EqualFold(filepath.Ext(reviewOut), ".csv") {
		name, err = svc.ReviewCSV(ctx, view.ID, tmp)
	} else {
		name, err = svc.ReviewWorkbook(ctx, view.ID, tmp)
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	dest := reviewOut
	if dest == "" {
		dest = filepath.Join(a.dir, name)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), dest)
	return nil
}

func runSubmit(cmd *cobra.Command, args []string) error {
	a, err := loadAnswers(args[0])
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	svc := newWizardService()
	defer svc.Close()

	view, err := a.open(ctx, svc, maxUploadBytes())
	if err != nil {
		return err
	}
	if err := advanceToFinal(ctx, svc, view); err != nil {
		return err
	}

	res, err := svc.Submit(ctx, view.ID, submitYes)
	if err != nil {
		if errors.Is(err, domain.ErrConsentRequired) {
			return fmt.Errorf("%w (pass --yes to confirm)", err)
		}
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Message)
	if res.RedirectURL != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "track your application: %s\n", res.RedirectURL)
	}
	return nil
}

func advanceToFinal(ctx context.Context, svc service.WizardService, view *service.SessionView) error {
	for st := view.Wizard; st.CurrentStep < st.StepCount; {
		out, err := svc.Next(ctx, view.ID)
		if err != nil {
			var ve *domain.ValidationError
			if errors.As(err, &ve) {
				return fmt.Errorf("step %d: %w", ve.Step, err)
			}
			return err
		}
		st = out.State
	}
	return nil
}
