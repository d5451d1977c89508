package project

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Input limits.
const (
	MaxNameLen      = 100
	MaxListItems    = 50
	MaxItemLen      = 1000
	MaxTextLen      = 5000
	MaxTaskIDLen    = 64
	MaxTasks        = 200
	MaxTaskTitle    = 200
	MaxDependencies = 50
)

var (
	namePattern   = regexp.MustCompile(`^[A-Za-z0-9 _.\-]+$`)
	taskIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`)
)

var validPriorities = map[string]bool{
	PriorityHigh:   true,
	PriorityMedium: true,
	PriorityLow:    true,
}

// ValidateName checks a project name: non-empty after trimming, bounded
// length and a restricted character set.
func ValidateName(field, name string) []FieldError {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return []FieldError{{Field: field, Message: "must not be empty"}}
	case utf8.RuneCountInString(name) > MaxNameLen:
		return []FieldError{{Field: field, Message: fmt.Sprintf("must be at most %d characters", MaxNameLen)}}
	case !namePattern.MatchString(name):
		return []FieldError{{Field: field, Message: "may only contain letters, digits, spaces, '.', '_' and '-'"}}
	}
	return nil
}

// ValidateList checks an array of free-form strings: bounded item count,
// every item non-empty and bounded in length.
func ValidateList(field string, items []string) []FieldError {
	var errs []FieldError
	if len(items) > MaxListItems {
		errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf("must have at most %d items, got %d", MaxListItems, len(items))})
	}
	for i, item := range items {
		name := fmt.Sprintf("%s[%d]", field, i)
		if strings.TrimSpace(item) == "" {
			errs = append(errs, FieldError{Field: name, Message: "must not be empty"})
			continue
		}
		if utf8.RuneCountInString(item) > MaxItemLen {
			errs = append(errs, FieldError{Field: name, Message: fmt.Sprintf("must be at most %d characters", MaxItemLen)})
		}
	}
	return errs
}

// ValidateText checks a free-form text field against a length bound.
func ValidateText(field, s string, max int) []FieldError {
	if utf8.RuneCountInString(s) > max {
		return []FieldError{{Field: field, Message: fmt.Sprintf("must be at most %d characters", max)}}
	}
	return nil
}

// ValidateTaskID checks the task id format and length.
func ValidateTaskID(field, id string) []FieldError {
	switch {
	case id == "":
		return []FieldError{{Field: field, Message: "must not be empty"}}
	case len(id) > MaxTaskIDLen:
		return []FieldError{{Field: field, Message: fmt.Sprintf("must be at most %d characters", MaxTaskIDLen)}}
	case !taskIDPattern.MatchString(id):
		return []FieldError{{Field: field, Message: "may only contain letters, digits, '.', '_' and '-'"}}
	}
	return nil
}

// ValidateTasks checks a task list for the todo phase: valid and unique ids,
// non-empty titles, known priorities and well-formed dependencies.
func ValidateTasks(field string, tasks []Task) []FieldError {
	var errs []FieldError
	if len(tasks) > MaxTasks {
		errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf("must have at most %d tasks, got %d", MaxTasks, len(tasks))})
	}
	seen := make(map[string]bool, len(tasks))
	for i, t := range tasks {
		prefix := fmt.Sprintf("%s[%d]", field, i)
		errs = append(errs, ValidateTaskID(prefix+".id", t.ID)...)
		if t.ID != "" {
			if seen[t.ID] {
				errs = append(errs, FieldError{Field: prefix + ".id", Message: fmt.Sprintf("duplicate task id %q", t.ID)})
			}
			seen[t.ID] = true
		}
		if strings.TrimSpace(t.Title) == "" {
			errs = append(errs, FieldError{Field: prefix + ".title", Message: "must not be empty"})
		} else if utf8.RuneCountInString(t.Title) > MaxTaskTitle {
			errs = append(errs, FieldError{Field: prefix + ".title", Message: fmt.Sprintf("must be at most %d characters", MaxTaskTitle)})
		}
		errs = append(errs, ValidateText(prefix+".description", t.Description, MaxItemLen)...)
		if t.Priority != "" && !validPriorities[t.Priority] {
			errs = append(errs, FieldError{Field: prefix + ".priority", Message: "must be one of: high, medium, low"})
		}
		if t.EstimatedHours != nil && *t.EstimatedHours < 0 {
			errs = append(errs, FieldError{Field: prefix + ".estimated_hours", Message: "must not be negative"})
		}
		if len(t.Dependencies) > MaxDependencies {
			errs = append(errs, FieldError{Field: prefix + ".dependencies", Message: fmt.Sprintf("must have at most %d items", MaxDependencies)})
		}
		for j, dep := range t.Dependencies {
			errs = append(errs, ValidateTaskID(fmt.Sprintf("%s.dependencies[%d]", prefix, j), dep)...)
		}
	}
	return errs
}

// Sanitize trims surrounding whitespace and drops control characters other
// than newlines and tabs.
func Sanitize(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// SanitizeList applies Sanitize to every item. nil stays nil.
func SanitizeList(items []string) []string {
	if items == nil {
		return nil
	}
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = Sanitize(item)
	}
	return out
}

// SanitizeTask normalizes a task's text fields and defaults its priority.
func SanitizeTask(t Task) Task {
	t.ID = strings.TrimSpace(t.ID)
	t.Title = Sanitize(t.Title)
	t.Description = Sanitize(t.Description)
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	return t
}
