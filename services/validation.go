package services

import (
	"strings"
	"time"

	"manuscript-workflow-api/models"
	"manuscript-workflow-api/utils"
)

// PublicationRequest is the raw publish form.
type PublicationRequest struct {
	IssueNumber   string `json:"issue_number"`
	IssueName     string `json:"issue_name"`
	VolumeName    string `json:"volume_name"`
	DatePublished string `json:"date_published"`
}

// Publication is a validated publish form.
type Publication struct {
	IssueNumber   models.IssueNumber
	IssueName     *string
	VolumeName    string
	DatePublished time.Time
}

// ValidatePublication checks the publish form and returns every field problem at once.
// It is the single source of truth for both the engine and client pre-checks.
func ValidatePublication(req PublicationRequest) (*Publication, error) {
	verr := &ValidationError{}

	issue := models.IssueNumber(utils.SanitizeInput(req.IssueNumber))
	issueName := utils.SanitizeInput(req.IssueName)
	volume := utils.SanitizeInput(req.VolumeName)
	dateRaw := utils.SanitizeInput(req.DatePublished)

	switch {
	case issue == "":
		verr.Add("issue_number", "Issue number is required")
	case !issue.Valid():
		verr.Add("issue_number", "Issue number must be one of 1, 2 or Special Issue")
	case issue == models.IssueSpecial && issueName == "":
		verr.Add("issue_name", "Issue name is required for Special Issue")
	case issue != models.IssueSpecial && issueName != "":
		verr.Add("issue_name", "Issue name is only allowed for Special Issue")
	}

	if volume == "" {
		verr.Add("volume_name", "Volume name is required")
	}

	var published time.Time
	if dateRaw == "" {
		verr.Add("date_published", "Date published is required")
	} else if t, err := utils.ParseDate(dateRaw); err != nil {
		verr.Add("date_published", "Date published must be a YYYY-MM-DD date")
	} else {
		published = t
	}

	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	pub := &Publication{
		IssueNumber:   issue,
		VolumeName:    volume,
		DatePublished: published,
	}
	if issueName != "" {
		pub.IssueName = &issueName
	}
	return pub, nil
}

// IntakeRequest is the descriptive data captured when a manuscript is received.
type IntakeRequest struct {
	Title       string   `json:"title"`
	Authors     []string `json:"authors"`
	AuthorEmail string   `json:"author_email"`
	Scope       string   `json:"scope"`
	ScopeCode   string   `json:"scope_code"`
	Affiliation string   `json:"affiliation"`
}

// Normalize trims every field.
func (r IntakeRequest) Normalize() IntakeRequest {
	out := IntakeRequest{
		Title:       utils.SanitizeInput(r.Title),
		AuthorEmail: strings.ToLower(utils.SanitizeInput(r.AuthorEmail)),
		Scope:       utils.SanitizeInput(r.Scope),
		ScopeCode:   strings.ToUpper(utils.SanitizeInput(r.ScopeCode)),
		Affiliation: utils.SanitizeInput(r.Affiliation),
	}
	out.Authors = make([]string, len(r.Authors))
	for i, a := range r.Authors {
		out.Authors[i] = utils.SanitizeInput(a)
	}
	return out
}

// ValidateIntake checks a normalized intake request.
func ValidateIntake(r IntakeRequest) error {
	verr := &ValidationError{}
	if r.Title == "" {
		verr.Add("title", "Title is required")
	}
	if len(r.Authors) == 0 {
		verr.Add("authors", "At least one author is required")
	}
	for _, a := range r.Authors {
		if a == "" {
			verr.Add("authors", "Author names cannot be blank")
			break
		}
	}
	if r.AuthorEmail == "" {
		verr.Add("author_email", "Author email is required")
	} else if !utils.ValidateEmail(r.AuthorEmail) {
		verr.Add("author_email", "Author email is not a valid address")
	}
	if r.Scope == "" {
		verr.Add("scope", "Scope is required")
	}
	if r.ScopeCode == "" {
		verr.Add("scope_code", "Scope code is required")
	} else if strings.ContainsAny(r.ScopeCode, " -/") {
		verr.Add("scope_code", "Scope code cannot contain spaces, dashes or slashes")
	}
	return verr.OrNil()
}

// ValidateScores checks that both metrics are percentages.
func ValidateScores(grammar, plagiarism int) error {
	verr := &ValidationError{}
	if grammar < 0 || grammar > 100 {
		verr.Add("grammar_score", "Grammar score must be between 0 and 100")
	}
	if plagiarism < 0 || plagiarism > 100 {
		verr.Add("plagiarism_score", "Plagiarism score must be between 0 and 100")
	}
	return verr.OrNil()
}
