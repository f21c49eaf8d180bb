package corpus

import (
	"fmt"
	"strings"

	"github.com/fabfab/grant-drafter/ingestion"
)

// CompanyProfile holds the free-text company fields of a submission.
type CompanyProfile struct {
	Name            string `json:"name"`
	Website         string `json:"website"`
	Country         string `json:"country"`
	Background      string `json:"background"`
	Product         string `json:"product"`
	CompetitorsUVP  string `json:"competitors_uvp"`
	CurrentStage    string `json:"current_stage"`
	MainObjective   string `json:"main_objective"`
	TargetCustomers string `json:"target_customers"`
	FundingStatus   string `json:"funding_status"`
}

type GrantDetails struct {
	ProgramName string `json:"program_name"`
	Link        string `json:"link"`
	Amount      string `json:"amount"`
}

// Inputs is everything Assemble needs. Extraction pointers are nil when the
// source was not supplied.
type Inputs struct {
	Company         CompanyProfile
	CompanyWebsite  *ingestion.Extraction
	Grant           GrantDetails
	Attachments     []ingestion.Extraction
	Budget          string
	Guidelines      *ingestion.Extraction
	ApplicationForm *ingestion.Extraction
}

// NewInputs combines form fields with the extraction results of the same
// submission.
func NewInputs(company CompanyProfile, grant GrantDetails, budget string, extracted ingestion.Extracted) Inputs {
	return Inputs{
		Company:         company,
		CompanyWebsite:  extracted.Website,
		Grant:           grant,
		Attachments:     extracted.Attachments,
		Budget:          budget,
		Guidelines:      extracted.Guidelines,
		ApplicationForm: extracted.ApplicationForm,
	}
}

// Assemble renders each section and drops the empty ones. Failed extractions
// become inline notes rather than aborting.
func Assemble(in Inputs) Corpus {
	return fromBodies(map[string]string{
		LabelCompany:         companyBody(in.Company, in.CompanyWebsite),
		LabelGrant:           grantBody(in.Grant),
		LabelAttachments:     attachmentsBody(in.Attachments),
		LabelBudget:          fields(field{"Allocation Details", in.Budget}),
		LabelGuidelines:      documentBody("GRANT GUIDELINES", in.Guidelines),
		LabelApplicationForm: documentBody("APPLICATION FORM", in.ApplicationForm),
	})
}

type field struct {
	name  string
	value string
}

func fields(items ...field) string {
	var lines []string
	for _, f := range items {
		if v := strings.TrimSpace(f.value); v != "" {
			lines = append(lines, "- "+f.name+": "+v)
		}
	}
	return strings.Join(lines, "\n")
}

func companyBody(c CompanyProfile, website *ingestion.Extraction) string {
	body := fields(
		field{"Name", c.Name},
		field{"Website", c.Website},
		field{"Country", c.Country},
		field{"Background", c.Background},
		field{"Product", c.Product},
		field{"Competitors/UVP", c.CompetitorsUVP},
		field{"Current Stage", c.CurrentStage},
		field{"Main Objective", c.MainObjective},
		field{"Target Customers", c.TargetCustomers},
		field{"Funding Status", c.FundingStatus},
	)

	var extra string
	switch {
	case website == nil:
	case website.Failed():
		extra = fmt.Sprintf("- Company Website Text (URL: %s) %s: %s",
			website.Source.Locator, website.Kind().Describe(), website.Reason())
	default:
		extra = fields(field{"Company Website Text", website.Text})
	}
	return joinNonEmpty("\n", body, extra)
}

func grantBody(g GrantDetails) string {
	return fields(
		field{"Program", g.ProgramName},
		field{"Grant Link", g.Link},
		field{"Amount Applying For", g.Amount},
	)
}

func attachmentsBody(items []ingestion.Extraction) string {
	var parts []string
	for _, item := range items {
		header := "COMPANY ATTACHMENT (" + item.Label + ")"
		switch {
		case item.Failed():
			parts = append(parts, fmt.Sprintf("%s %s: %s", header, item.Kind().Describe(), item.Reason()))
		case strings.TrimSpace(item.Text) != "":
			parts = append(parts, header+":\n"+item.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// documentBody renders a single-document section. A supplied source that
// failed still produces a note so the reader knows it was attempted.
func documentBody(name string, doc *ingestion.Extraction) string {
	switch {
	case doc == nil:
		return ""
	case doc.Failed():
		return fmt.Sprintf("%s (%s) %s: %s", name, ingestion.AttachmentLabel(doc.Source), doc.Kind().Describe(), doc.Reason())
	default:
		return doc.Text
	}
}

func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

// HasApplicationForm reports whether a form source was supplied at all,
// regardless of whether its extraction succeeded.
func (in Inputs) HasApplicationForm() bool {
	return in.ApplicationForm != nil
}
