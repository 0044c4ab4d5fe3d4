package render

import (
	"strings"
	"testing"

	"github.com/stampworks/sigforge/internal/domain"
)

func testTarget() domain.DeploymentTarget {
	return domain.DeploymentTarget{
		UserID:      "user-1",
		Email:       "alice@acme.com",
		DisplayName: "Alice Moore",
		Profile: map[string]string{
			"title":        "Account Executive",
			"phone":        "+1 (555) 010-4477",
			"booking_link": "https://cal.acme.com/alice moore",
		},
	}
}

func TestRenderBlocksInOrder(t *testing.T) {
	tpl := &domain.SignatureTemplate{
		ID:             "tpl-1",
		OrganizationID: "org-1",
		Blocks: []domain.TemplateBlock{
			{Type: domain.BlockText, Source: `<b>{{ display_name }}</b>`},
			{Type: domain.BlockText, Source: `<i>{{ title | default: "Team Member" }}</i>`},
			{Type: domain.BlockDivider, Source: `<hr>`},
		},
	}

	got, err := NewRenderer().Render(tpl, testTarget())
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	want := `<b>Alice Moore</b><i>Account Executive</i><hr>`
	if got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestRenderFilters(t *testing.T) {
	cases := []struct {
		name   string
		source string
		want   string
	}{
		{"default fills missing var", `{{ pronouns | default: "n/a" }}`, "n/a"},
		{"tel_href strips formatting", `{{ phone | tel_href }}`, "tel:+15550104477"},
		{"initials", `{{ display_name | initials }}`, "AM"},
		{"urlencode", `{{ booking_link | urlencode }}`, "https%3A%2F%2Fcal.acme.com%2Falice+moore"},
		{"escape", `{{ raw | escape }}`, "&lt;script&gt;"},
	}

	r := NewRenderer()
	target := testTarget()
	target.Profile["raw"] = "<script>"

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tpl := &domain.SignatureTemplate{
				ID:     "tpl-" + tc.name,
				Blocks: []domain.TemplateBlock{{Type: domain.BlockText, Source: tc.source}},
			}
			got, err := r.Render(tpl, target)
			if err != nil {
				t.Fatalf("Render() error: %v", err)
			}
			if got != tc.want {
				t.Errorf("Render() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRenderParseErrorSurfaces(t *testing.T) {
	tpl := &domain.SignatureTemplate{
		ID:     "tpl-bad",
		Blocks: []domain.TemplateBlock{{Type: domain.BlockText, Source: `{% if %}`}},
	}
	if _, err := NewRenderer().Render(tpl, testTarget()); err == nil {
		t.Fatal("Render() with malformed block must fail")
	}
}

func TestValidate(t *testing.T) {
	r := NewRenderer()

	good := &domain.SignatureTemplate{
		ID:     "tpl-good",
		Blocks: []domain.TemplateBlock{{Type: domain.BlockText, Source: `{{ email }}`}},
	}
	if err := r.Validate(good); err != nil {
		t.Errorf("Validate(good) error: %v", err)
	}

	bad := &domain.SignatureTemplate{
		ID: "tpl-bad",
		Blocks: []domain.TemplateBlock{
			{Type: domain.BlockText, Source: `fine`},
			{Type: domain.BlockText, Source: `{% endfor %}`},
		},
	}
	err := r.Validate(bad)
	if err == nil {
		t.Fatal("Validate(bad) must fail")
	}
	if !strings.Contains(err.Error(), "block 1") {
		t.Errorf("Validate error should name the failing block, got: %v", err)
	}
}

func TestContextProfileNeverShadowsIdentity(t *testing.T) {
	target := testTarget()
	target.Profile["email"] = "spoof@evil.com"

	binding := Context(target)
	if binding["email"] != "alice@acme.com" {
		t.Errorf("profile key shadowed identity field: %v", binding["email"])
	}
}
