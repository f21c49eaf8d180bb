package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/fabfab/grant-drafter/corpus"
	"github.com/fabfab/grant-drafter/drafting"
	"github.com/fabfab/grant-drafter/elicitation"
	"github.com/fabfab/grant-drafter/ingestion"
)

// submissionFile is the YAML form of the wizard. Sources are file paths or
// URLs.
type submissionFile struct {
	Company struct {
		Name            string `yaml:"name"`
		Website         string `yaml:"website"`
		Country         string `yaml:"country"`
		Background      string `yaml:"background"`
		Product         string `yaml:"product"`
		CompetitorsUVP  string `yaml:"competitors_uvp"`
		CurrentStage    string `yaml:"current_stage"`
		MainObjective   string `yaml:"main_objective"`
		TargetCustomers string `yaml:"target_customers"`
		FundingStatus   string `yaml:"funding_status"`
	} `yaml:"company"`
	Grant struct {
		ProgramName string `yaml:"program_name"`
		Link        string `yaml:"link"`
		Amount      string `yaml:"amount"`
	} `yaml:"grant"`
	Budget          string   `yaml:"budget"`
	Attachments     []string `yaml:"attachments"`
	Guidelines      string   `yaml:"guidelines"`
	ApplicationForm string   `yaml:"application_form"`
}

func loadSubmissionFile(path string) (submissionFile, error) {
	var sf submissionFile
	data, err := os.ReadFile(path)
	if err != nil {
		return sf, fmt.Errorf("read submission: %w", err)
	}
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return sf, fmt.Errorf("parse submission %s: %w", path, err)
	}
	return sf, nil
}

func (sf submissionFile) profile() corpus.CompanyProfile {
	c := sf.Company
	return corpus.CompanyProfile{
		Name:            c.Name,
		Website:         c.Website,
		Country:         c.Country,
		Background:      c.Background,
		Product:         c.Product,
		CompetitorsUVP:  c.CompetitorsUVP,
		CurrentStage:    c.CurrentStage,
		MainObjective:   c.MainObjective,
		TargetCustomers: c.TargetCustomers,
		FundingStatus:   c.FundingStatus,
	}
}

func (sf submissionFile) grant() corpus.GrantDetails {
	return corpus.GrantDetails{ProgramName: sf.Grant.ProgramName, Link: sf.Grant.Link, Amount: sf.Grant.Amount}
}

func (sf submissionFile) submission() (ingestion.Submission, error) {
	sub := ingestion.Submission{Website: strings.TrimSpace(sf.Company.Website)}
	for _, arg := range sf.Attachments {
		src, err := sourceFromArg(arg)
		if err != nil {
			return sub, err
		}
		sub.Attachments = append(sub.Attachments, src)
	}
	var err error
	if sub.Guidelines, err = optionalSource(sf.Guidelines); err != nil {
		return sub, err
	}
	if sub.ApplicationForm, err = optionalSource(sf.ApplicationForm); err != nil {
		return sub, err
	}
	return sub, nil
}

func runInterview(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	sf, err := loadSubmissionFile(args[0])
	if err != nil {
		return err
	}
	sub, err := sf.submission()
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	out := cmd.OutOrStdout()
	extracted := a.ingestion.ExtractSubmission(ctx, sub)
	inputs := corpus.NewInputs(sf.profile(), sf.grant(), sf.Budget, extracted)
	for _, src := range failedSources(extracted) {
		fmt.Fprintf(out, "warning: %s %s: %s\n", src.Label, src.Kind().Describe(), src.Reason())
	}

	sessions := elicitation.NewStore()
	sess := sessions.Create(interviewUser, inputs)
	loop := sess.Loop

	if err := loop.Start(ctx, a.synthesizer); err != nil {
		if errors.Is(err, elicitation.ErrBlocked) {
			fmt.Fprintln(out, loop.BlockedReason())
			return nil
		}
		return err
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for loop.State() != elicitation.StateComplete {
		question, err := loop.Present()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\n[%d/%d] %s\n> ", loop.Index()+1, len(loop.Questions()), question)

		answer, err := readAnswer(scanner, out)
		if err != nil {
			return err
		}
		if err := loop.Answer(answer); err != nil {
			return err
		}
	}

	fmt.Fprintln(out, "\nDrafting application...")
	draft, err := a.drafter.Draft(ctx, loop.Corpus(), loop.Transcript())
	if err != nil {
		return err
	}

	saved, err := a.publisher.Publish(ctx, drafting.PublishRequest{
		UserID:    sess.UserID,
		SessionID: sess.ID,
		GrantName: inputs.Grant.ProgramName,
		Draft:     draft,
		Sources:   allSources(extracted),
	})
	if err != nil {
		logger.Warn("publish draft", zap.Error(err))
	} else if saved.DocumentURL != "" {
		fmt.Fprintf(out, "Saved %s\n", saved.DocumentURL)
	}

	if interviewOut != "" {
		if err := os.WriteFile(interviewOut, []byte("# "+draft.Title+"\n\n"+draft.Body+"\n"), 0o644); err != nil {
			return fmt.Errorf("write draft: %w", err)
		}
		fmt.Fprintf(out, "Draft written to %s\n", interviewOut)
		return nil
	}
	fmt.Fprintf(out, "\n# %s\n\n%s\n", draft.Title, draft.Body)
	return nil
}

// readAnswer re-prompts until a non-blank line arrives.
func readAnswer(scanner *bufio.Scanner, out io.Writer) (string, error) {
	for scanner.Scan() {
		if answer := strings.TrimSpace(scanner.Text()); answer != "" {
			return answer, nil
		}
		fmt.Fprint(out, "Please enter an answer.\n> ")
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read answer: %w", err)
	}
	return "", errors.New("interview aborted: input closed before every question was answered")
}

func confirm(cmd *cobra.Command, prompt string) (bool, error) {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	scanner := bufio.NewScanner(cmd.InOrStdin())
	if !scanner.Scan() {
		return false, scanner.Err()
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes", nil
}

// sourceFromArg treats an existing path as an uploaded PDF and anything else
// as a link.
func sourceFromArg(arg string) (ingestion.Attachment, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return ingestion.Attachment{}, errors.New("empty source")
	}
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		data, err := os.ReadFile(arg)
		if err != nil {
			return ingestion.Attachment{}, fmt.Errorf("read %s: %w", arg, err)
		}
		return ingestion.FileAttachment(filepath.Base(arg), data), nil
	}
	return ingestion.LinkAttachment(arg, arg), nil
}

func optionalSource(arg string) (*ingestion.Attachment, error) {
	if strings.TrimSpace(arg) == "" {
		return nil, nil
	}
	src, err := sourceFromArg(arg)
	if err != nil {
		return nil, err
	}
	return &src, nil
}

func allSources(e ingestion.Extracted) []ingestion.Extraction {
	var out []ingestion.Extraction
	if e.Website != nil {
		out = append(out, *e.Website)
	}
	out = append(out, e.Attachments...)
	if e.Guidelines != nil {
		out = append(out, *e.Guidelines)
	}
	if e.ApplicationForm != nil {
		out = append(out, *e.ApplicationForm)
	}
	return out
}

func failedSources(e ingestion.Extracted) []ingestion.Extraction {
	var out []ingestion.Extraction
	for _, src := range allSources(e) {
		if src.Failed() {
			out = append(out, src)
		}
	}
	return out
}
