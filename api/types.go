package api

import (
	"strings"

	"github.com/fabfab/grant-drafter/corpus"
	"github.com/fabfab/grant-drafter/database"
	"github.com/fabfab/grant-drafter/elicitation"
	"github.com/fabfab/grant-drafter/ingestion"
)

// sourceRequest describes one uploaded PDF (base64 data) or one link.
type sourceRequest struct {
	Name string `json:"name,omitempty"`
	Data []byte `json:"data,omitempty"`
	Link string `json:"link,omitempty"`
}

func (r sourceRequest) attachment() (ingestion.Attachment, bool) {
	src := ingestion.PickSource(r.Name, r.Data, r.Link)
	if src == nil {
		return ingestion.Attachment{}, false
	}
	return *src, true
}

func (r *sourceRequest) pick(fallbackName string) *ingestion.Attachment {
	if r == nil {
		return nil
	}
	name := r.Name
	if name == "" {
		name = fallbackName
	}
	return ingestion.PickSource(name, r.Data, r.Link)
}

type extractRequest struct {
	Source sourceRequest `json:"source"`
}

type submissionRequest struct {
	UserID          string                `json:"user_id"`
	Company         corpus.CompanyProfile `json:"company"`
	Grant           corpus.GrantDetails   `json:"grant"`
	Budget          string                `json:"budget,omitempty"`
	Attachments     []sourceRequest       `json:"attachments,omitempty"`
	Guidelines      *sourceRequest        `json:"guidelines,omitempty"`
	ApplicationForm *sourceRequest        `json:"application_form,omitempty"`
}

func (r submissionRequest) submission() ingestion.Submission {
	sub := ingestion.Submission{
		Website:         strings.TrimSpace(r.Company.Website),
		Guidelines:      r.Guidelines.pick("guidelines"),
		ApplicationForm: r.ApplicationForm.pick("application-form"),
	}
	for _, att := range r.Attachments {
		if src, ok := att.attachment(); ok {
			sub.Attachments = append(sub.Attachments, src)
		}
	}
	return sub
}

type answerRequest struct {
	Answer string `json:"answer"`
}

type budgetRequest struct {
	Guidelines      *sourceRequest `json:"guidelines,omitempty"`
	ApplicationForm *sourceRequest `json:"application_form,omitempty"`
}

type clearRequest struct {
	Confirm bool `json:"confirm"`
}

type extractionResponse struct {
	Label  string `json:"label"`
	Kind   string `json:"kind,omitempty"`
	Error  string `json:"error,omitempty"`
	Chars  int    `json:"chars"`
	Text   string `json:"text,omitempty"`
	Failed bool   `json:"failed"`
}

func toExtractionResponse(e ingestion.Extraction, withText bool) extractionResponse {
	resp := extractionResponse{Label: e.Label, Chars: len(e.Text)}
	if e.Failed() {
		resp.Failed = true
		resp.Kind = string(e.Kind())
		resp.Error = e.Reason()
		return resp
	}
	if withText {
		resp.Text = e.Text
	}
	return resp
}

type sessionResponse struct {
	ID       string               `json:"id"`
	UserID   string               `json:"user_id,omitempty"`
	Session  elicitation.Snapshot `json:"session"`
	Sources  []extractionResponse `json:"sources"`
	Corpus   string               `json:"corpus,omitempty"`
	// Sections is the corpus split by label, set alongside Corpus.
	Sections []corpus.Section `json:"sections,omitempty"`
}

func newSessionResponse(sess *elicitation.Session, withCorpus bool) sessionResponse {
	resp := sessionResponse{
		ID:      sess.ID,
		UserID:  sess.UserID,
		Session: sess.Loop.Snapshot(),
	}
	for _, src := range sessionSources(sess.Inputs) {
		resp.Sources = append(resp.Sources, toExtractionResponse(src, false))
	}
	if withCorpus {
		c := sess.Loop.Corpus()
		resp.Corpus = c.String()
		resp.Sections = c.Sections()
	}
	return resp
}

// sessionSources flattens the extraction results of a submission in corpus
// order.
func sessionSources(in corpus.Inputs) []ingestion.Extraction {
	var out []ingestion.Extraction
	if in.CompanyWebsite != nil {
		out = append(out, *in.CompanyWebsite)
	}
	out = append(out, in.Attachments...)
	if in.Guidelines != nil {
		out = append(out, *in.Guidelines)
	}
	if in.ApplicationForm != nil {
		out = append(out, *in.ApplicationForm)
	}
	return out
}

type draftResponse struct {
	Title        string                `json:"title"`
	Body         string                `json:"body"`
	Application  *database.Application `json:"application,omitempty"`
	// PublishError is set when the draft was generated but could not be stored.
	PublishError string                `json:"publish_error,omitempty"`
}

type applicationsResponse struct {
	Applications []database.Application `json:"applications"`
}

type similarResponse struct {
	Results []database.ScoredApplication `json:"results"`
}

type clearResponse struct {
	Sessions     int   `json:"sessions"`
	Applications int64 `json:"applications"`
	Documents    int   `json:"documents"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}
