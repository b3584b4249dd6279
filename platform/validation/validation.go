package validation

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hackerlorDNA/UTH-Scientific-Conference-Paper-Management-System-sub001/utils"
)

var acronymRegex = regexp.MustCompile(`^[A-Za-z0-9-]+$`)

type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for _, fe := range e {
		parts = append(parts, fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e Errors) HasCode(code string) bool {
	for _, fe := range e {
		if fe.Code == code {
			return true
		}
	}
	return false
}

type errorResponse struct {
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors"`
}

// WriteErrors renders a response listing every field error, normally with
// status 400. Duplicate checks report their field errors with 409.
func WriteErrors(w http.ResponseWriter, status int, errs Errors) {
	utils.WriteJsonStatus(w, status, errorResponse{Message: "validation failed", Errors: errs})
}

type Validator struct {
	validate *validator.Validate
	catalog  *Catalog
}

func New(catalog *Catalog) *Validator {
	validate := validator.New(validator.WithRequiredStructEnabled())

	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})

	err := validate.RegisterValidation("acronym", func(fl validator.FieldLevel) bool {
		return acronymRegex.MatchString(fl.Field().String())
	})
	if err != nil {
		panic(fmt.Sprintf("error registering acronym validation: %v", err))
	}

	return &Validator{validate: validate, catalog: catalog}
}

// Language picks the response language from Accept-Language, defaulting to the
// catalog's configured language.
func (v *Validator) Language(r *http.Request) string {
	for _, part := range strings.Split(r.Header.Get("Accept-Language"), ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		lang := strings.ToLower(strings.SplitN(tag, "-", 2)[0])
		if lang != "" && v.catalog.Supports(lang) {
			return lang
		}
	}
	return v.catalog.DefaultLanguage()
}

// Struct runs the struct tag rules and returns Errors, or nil when valid.
func (v *Validator) Struct(r *http.Request, s interface{}) error {
	builder := v.Builder(r)

	err := v.validate.Struct(s)
	if err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("error validating request: %w", err)
		}
		for _, fe := range verrs {
			builder.Add(fieldPath(fe), fe.Tag(), fe.Param())
		}
	}

	return builder.Err()
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return fe.Field()
}

func (v *Validator) Builder(r *http.Request) *Builder {
	return &Builder{lang: v.Language(r), catalog: v.catalog}
}

// Builder accumulates field errors from domain checks.
type Builder struct {
	lang    string
	catalog *Catalog
	errs    Errors
}

func (b *Builder) Add(field, code, param string) {
	b.errs = append(b.errs, FieldError{
		Field:   field,
		Code:    code,
		Message: b.catalog.Message(b.lang, code, field, param),
	})
}

func (b *Builder) Merge(err error) error {
	var errs Errors
	if errors.As(err, &errs) {
		b.errs = append(b.errs, errs...)
		return nil
	}
	return err
}

func (b *Builder) Err() error {
	if len(b.errs) == 0 {
		return nil
	}
	return b.errs
}
