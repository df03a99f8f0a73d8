// Package intake validates and submits the candidate intake form, the
// entry point to an assessment session.
package intake

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/assessly/proctor/internal/api"
)

// Form is the candidate intake form. Resume is an optional passthrough
// reference; file handling happens elsewhere.
type Form struct {
	Email              string `json:"email" validate:"required,email"`
	LinkedinProfileURL string `json:"linkedin_profile_url" validate:"required,url"`
	GithubProfileURL   string `json:"github_profile_url" validate:"required,url"`
	Resume             string `json:"resume" validate:"omitempty"`
}

// CandidateCreator is the backend operation intake depends on.
// *api.Client satisfies it.
type CandidateCreator interface {
	CreateCandidate(ctx context.Context, payload api.CandidatePayload) (string, error)
}

var (
	setupOnce sync.Once
	validate  *govalidator.Validate
	trans     ut.Translator
)

// setup builds the validator with English translations, using JSON tag
// names for field names in error messages.
func setup() {
	validate = govalidator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, trans)
}

// Validate checks the form and returns a map of field name → human-readable
// error message, or nil when the form is valid.
func Validate(form *Form) map[string]string {
	setupOnce.Do(setup)

	err := validate.Struct(form)
	if err == nil {
		return nil
	}

	fields := make(map[string]string)
	var ve govalidator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			fields[fe.Field()] = fe.Translate(trans)
		}
		return fields
	}
	fields["detail"] = err.Error()
	return fields
}

// ValidationError carries the per-field messages of a rejected form.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("intake form validation failed (%d fields)", len(e.Fields))
}

// Register validates the form and creates the candidate, returning the
// assigned candidate ID. A *ValidationError is returned without touching
// the backend when the form is invalid.
func Register(ctx context.Context, backend CandidateCreator, form *Form) (string, error) {
	if fields := Validate(form); fields != nil {
		return "", &ValidationError{Fields: fields}
	}

	candidateID, err := backend.CreateCandidate(ctx, api.CandidatePayload{
		Email:              form.Email,
		LinkedinProfileURL: form.LinkedinProfileURL,
		GithubProfileURL:   form.GithubProfileURL,
		Resume:             form.Resume,
	})
	if err != nil {
		return "", fmt.Errorf("register candidate: %w", err)
	}
	return candidateID, nil
}
