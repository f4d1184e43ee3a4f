package commands

import (
	"errors"
	"strings"
	"testing"

	"github.com/rbxsync/rbxsync/pkg/engine"
)

func TestExitCodeByErrorClass(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain", errors.New("boom"), 1},
		{"validation", engine.NewValidationError("bad config", nil), 2},
		{"identity", engine.NewIdentityError("key taken"), 3},
		{"conflict", &engine.ConflictError{Conflicts: []engine.Conflict{{Kind: engine.KindPass, Key: "vip"}}}, 4},
		{"provider", engine.NewProviderError("remote failed", true, errors.New("500")), 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		arg     string
		want    engine.Kind
		wantErr bool
	}{
		{"pass", engine.KindPass, false},
		{"passes", engine.KindPass, false},
		{"badge", engine.KindBadge, false},
		{"badges", engine.KindBadge, false},
		{"product", engine.KindProduct, false},
		{"products", engine.KindProduct, false},
		{"universe", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		kind, err := parseKind(tt.arg)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseKind(%q): expected error", tt.arg)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseKind(%q): %v", tt.arg, err)
			continue
		}
		if kind != tt.want {
			t.Errorf("parseKind(%q) = %q, want %q", tt.arg, kind, tt.want)
		}
	}
}

func TestCommittedSummaryListsAppliedActions(t *testing.T) {
	result := &engine.ApplyResult{Applied: []engine.AppliedResource{
		{Kind: engine.KindPass, Key: "vip", Action: engine.ActionCreate, RemoteID: 100},
		{Kind: engine.KindBadge, Key: "welcome", Action: engine.ActionUpdate, RemoteID: 200},
	}}

	got := committedSummary(result)
	if !strings.Contains(got, "2 action(s) committed before the failure") {
		t.Errorf("summary missing count header: %q", got)
	}
	if !strings.Contains(got, `create pass "vip" (id 100)`) {
		t.Errorf("summary missing pass line: %q", got)
	}
	if !strings.Contains(got, `update badge "welcome" (id 200)`) {
		t.Errorf("summary missing badge line: %q", got)
	}
}

func TestCommittedSummaryEmptyWhenNothingApplied(t *testing.T) {
	if got := committedSummary(&engine.ApplyResult{}); got != "" {
		t.Errorf("summary for empty result = %q, want empty", got)
	}
	if got := committedSummary(nil); got != "" {
		t.Errorf("summary for nil result = %q, want empty", got)
	}
}

func TestFilterPlanKeepsNamedKinds(t *testing.T) {
	plan := &engine.SyncPlan{
		Passes:   []engine.ResourceAction{{Key: "vip", Kind: engine.KindPass, Action: engine.ActionCreate}},
		Badges:   []engine.ResourceAction{{Key: "welcome", Kind: engine.KindBadge, Action: engine.ActionCreate}},
		Products: []engine.ResourceAction{{Key: "coins", Kind: engine.KindProduct, Action: engine.ActionCreate}},
	}

	if err := filterPlan(plan, []string{"passes", "products"}); err != nil {
		t.Fatalf("filterPlan: %v", err)
	}

	if len(plan.Passes) != 1 || len(plan.Products) != 1 {
		t.Errorf("named kinds should survive: %d passes, %d products", len(plan.Passes), len(plan.Products))
	}
	if plan.Badges != nil {
		t.Errorf("badges should have been filtered out, got %v", plan.Badges)
	}
}

func TestFilterPlanEmptyKeepsEverything(t *testing.T) {
	plan := &engine.SyncPlan{
		Passes: []engine.ResourceAction{{Key: "vip", Kind: engine.KindPass, Action: engine.ActionSkip}},
	}

	if err := filterPlan(plan, nil); err != nil {
		t.Fatalf("filterPlan: %v", err)
	}
	if len(plan.Passes) != 1 {
		t.Errorf("empty filter should keep everything")
	}
}

func TestFilterPlanRejectsUnknownKind(t *testing.T) {
	err := filterPlan(&engine.SyncPlan{}, []string{"universes"})
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
	if !engine.IsValidation(err) {
		t.Errorf("expected a validation error, got %v", err)
	}
}
