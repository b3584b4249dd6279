package validation

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	English    = "en"
	Vietnamese = "vi"
)

// Message codes raised by domain checks in addition to the validator tag names.
const (
	CodeRequired            = "required"
	CodeDateOrder           = "date_order"
	CodePastDate            = "past_date"
	CodeDeadlineAfterStart  = "deadline_after_start"
	CodeDuplicate           = "duplicate"
	CodeUniqueItems         = "unique_items"
	CodeTooMany             = "too_many"
	CodeCorrespondingAuthor = "corresponding_author"
	CodeFileTooLarge        = "file_too_large"
	CodeFileType            = "file_type"
	CodeUnknownTrack        = "unknown_track"
	CodeDeadlinePassed      = "deadline_passed"
)

var builtinMessages = map[string]map[string]string{
	English: {
		"required":              "{field} is required",
		"min":                   "{field} must be at least {param}",
		"max":                   "{field} must not exceed {param}",
		"gte":                   "{field} must be greater than or equal to {param}",
		"lte":                   "{field} must be less than or equal to {param}",
		"email":                 "{field} must be a valid email address",
		"oneof":                 "{field} must be one of: {param}",
		"acronym":               "{field} may only contain letters, digits and hyphens",
		"uuid":                  "{field} must be a valid id",
		CodeDateOrder:           "End date must be on or after the start date",
		CodePastDate:            "Start date cannot be in the past",
		CodeDeadlineAfterStart:  "Submission deadline must be before the conference start date",
		CodeDuplicate:           "{field} '{param}' already exists",
		CodeUniqueItems:         "{field} must not contain duplicates",
		CodeTooMany:             "{field} may contain at most {param} items",
		CodeCorrespondingAuthor: "Exactly one corresponding author is required",
		CodeFileTooLarge:        "File size must not exceed {param}",
		CodeFileType:            "File type must be one of: {param}",
		CodeUnknownTrack:        "Track does not belong to this conference",
		CodeDeadlinePassed:      "The submission deadline has passed",
		"invalid":               "{field} is invalid",
	},
	Vietnamese: {
		"required":              "{field} là bắt buộc",
		"min":                   "{field} phải có ít nhất {param}",
		"max":                   "{field} không được vượt quá {param}",
		"gte":                   "{field} phải lớn hơn hoặc bằng {param}",
		"lte":                   "{field} phải nhỏ hơn hoặc bằng {param}",
		"email":                 "{field} phải là địa chỉ email hợp lệ",
		"oneof":                 "{field} phải là một trong: {param}",
		"acronym":               "{field} chỉ được chứa chữ cái, chữ số và dấu gạch ngang",
		"uuid":                  "{field} phải là mã định danh hợp lệ",
		CodeDateOrder:           "Ngày kết thúc phải bằng hoặc sau ngày bắt đầu",
		CodePastDate:            "Ngày bắt đầu không được ở trong quá khứ",
		CodeDeadlineAfterStart:  "Hạn nộp bài phải trước ngày bắt đầu hội nghị",
		CodeDuplicate:           "{field} '{param}' đã tồn tại",
		CodeUniqueItems:         "{field} không được chứa giá trị trùng lặp",
		CodeTooMany:             "{field} chỉ được chứa tối đa {param} mục",
		CodeCorrespondingAuthor: "Phải có đúng một tác giả liên hệ",
		CodeFileTooLarge:        "Kích thước tệp không được vượt quá {param}",
		CodeFileType:            "Loại tệp phải là một trong: {param}",
		CodeUnknownTrack:        "Chủ đề không thuộc hội nghị này",
		CodeDeadlinePassed:      "Đã hết hạn nộp bài",
		"invalid":               "{field} không hợp lệ",
	},
}

// Catalog resolves message codes to localized text. Unknown languages fall
// back to the default language, unknown codes to the generic "invalid" text.
type Catalog struct {
	defaultLang string
	messages    map[string]map[string]string
}

func NewCatalog(defaultLang string) *Catalog {
	messages := make(map[string]map[string]string, len(builtinMessages))
	for lang, entries := range builtinMessages {
		copied := make(map[string]string, len(entries))
		for code, text := range entries {
			copied[code] = text
		}
		messages[lang] = copied
	}

	if _, ok := messages[defaultLang]; !ok {
		defaultLang = English
	}

	return &Catalog{defaultLang: defaultLang, messages: messages}
}

// LoadOverrides merges a YAML file of the form {lang: {code: text}} into the
// catalog. New languages may be added this way.
func (c *Catalog) LoadOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading message overrides %v: %w", path, err)
	}

	var overrides map[string]map[string]string
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("error parsing message overrides %v: %w", path, err)
	}

	for lang, entries := range overrides {
		if _, ok := c.messages[lang]; !ok {
			c.messages[lang] = make(map[string]string, len(entries))
		}
		for code, text := range entries {
			c.messages[lang][code] = text
		}
	}

	return nil
}

func (c *Catalog) DefaultLanguage() string {
	return c.defaultLang
}

func (c *Catalog) Supports(lang string) bool {
	_, ok := c.messages[lang]
	return ok
}

func (c *Catalog) lookup(lang, code string) string {
	for _, l := range []string{lang, c.defaultLang, English} {
		if entries, ok := c.messages[l]; ok {
			if text, ok := entries[code]; ok {
				return text
			}
		}
	}
	return c.messages[English]["invalid"]
}

func (c *Catalog) Message(lang, code, field, param string) string {
	return strings.NewReplacer("{field}", field, "{param}", param).Replace(c.lookup(lang, code))
}
