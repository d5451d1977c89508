package project

import (
	"strings"
	"testing"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "Proj", false},
		{"spaces and punctuation", "My Project_v1.2-beta", false},
		{"empty", "", true},
		{"whitespace only", "   ", true},
		{"too long", strings.Repeat("a", MaxNameLen+1), true},
		{"max length", strings.Repeat("a", MaxNameLen), false},
		{"slash", "../etc", true},
		{"angle brackets", "<script>", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateName("project_name", tt.input)
			if (len(errs) > 0) != tt.wantErr {
				t.Errorf("ValidateName(%q) errs = %v, wantErr %v", tt.input, errs, tt.wantErr)
			}
		})
	}
}

func TestValidateList_AggregatesItems(t *testing.T) {
	errs := ValidateList("requirements", []string{"ok", "", "  ", strings.Repeat("x", MaxItemLen+1)})
	if len(errs) != 3 {
		t.Fatalf("got %d errors, want 3: %v", len(errs), errs)
	}
	if errs[0].Field != "requirements[1]" {
		t.Errorf("first field = %s, want requirements[1]", errs[0].Field)
	}
}

func TestValidateList_TooManyItems(t *testing.T) {
	items := make([]string, MaxListItems+1)
	for i := range items {
		items[i] = "x"
	}
	errs := ValidateList("requirements", items)
	if len(errs) != 1 || errs[0].Field != "requirements" {
		t.Errorf("errs = %v, want one list-level error", errs)
	}
}

func TestValidateTaskID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"t1", false},
		{"task-1.a_b", false},
		{"", true},
		{"has space", true},
		{strings.Repeat("t", MaxTaskIDLen+1), true},
	}
	for _, tt := range tests {
		if errs := ValidateTaskID("task_id", tt.id); (len(errs) > 0) != tt.wantErr {
			t.Errorf("ValidateTaskID(%q) errs = %v, wantErr %v", tt.id, errs, tt.wantErr)
		}
	}
}

func TestValidateTasks(t *testing.T) {
	neg := -1.0
	tasks := []Task{
		{ID: "t1", Title: "ok"},
		{ID: "t1", Title: "dup"},
		{ID: "t2", Title: ""},
		{ID: "t3", Title: "bad priority", Priority: "urgent"},
		{ID: "t4", Title: "negative", EstimatedHours: &neg},
		{ID: "t5", Title: "bad dep", Dependencies: []string{"no spaces allowed"}},
	}
	errs := ValidateTasks("tasks", tasks)

	wantFields := []string{
		"tasks[1].id",
		"tasks[2].title",
		"tasks[3].priority",
		"tasks[4].estimated_hours",
		"tasks[5].dependencies[0]",
	}
	if len(errs) != len(wantFields) {
		t.Fatalf("got %d errors, want %d: %v", len(errs), len(wantFields), errs)
	}
	for i, f := range wantFields {
		if errs[i].Field != f {
			t.Errorf("errs[%d].Field = %s, want %s", i, errs[i].Field, f)
		}
	}
}

func TestSanitize(t *testing.T) {
	got := Sanitize("  line one\nline\ttwo\x00\x07  ")
	want := "line one\nline\ttwo"
	if got != want {
		t.Errorf("Sanitize = %q, want %q", got, want)
	}
}

func TestSanitizeTask_DefaultsPriority(t *testing.T) {
	got := SanitizeTask(Task{ID: " t1 ", Title: " T "})
	if got.ID != "t1" || got.Title != "T" || got.Priority != PriorityMedium {
		t.Errorf("SanitizeTask = %+v", got)
	}
}

func TestSanitizeList_NilStaysNil(t *testing.T) {
	if SanitizeList(nil) != nil {
		t.Error("SanitizeList(nil) should be nil")
	}
}
