package validation

import "testing"

type intakeLike struct {
	Name    string `json:"requesterName" validate:"required,max=10"`
	Contact string `json:"requesterContact" validate:"required,contact"`
	Program string `json:"program" validate:"required,program"`
	Urgency string `json:"urgency" validate:"required,urgency"`
}

func TestValidate_ReportsEveryMissingField(t *testing.T) {
	errs, err := Validate(intakeLike{})
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range []string{"requesterName", "requesterContact", "program", "urgency"} {
		if len(errs[f]) == 0 || errs[f][0] != "This field is required" {
			t.Fatalf("field %s: %#v", f, errs[f])
		}
	}
}

func TestValidate_CustomTags(t *testing.T) {
	errs, _ := Validate(intakeLike{
		Name:    "Jane Nakato Long Name",
		Contact: "call me maybe",
		Program: "Tax Advice",
		Urgency: "Critical",
	})
	if errs["requesterName"][0] != "Must be at most 10 characters" {
		t.Fatalf("name: %#v", errs["requesterName"])
	}
	if errs["requesterContact"][0] != "Invalid phone/contact format" {
		t.Fatalf("contact: %#v", errs["requesterContact"])
	}
	if errs["program"][0] != "Unknown legal-aid program" {
		t.Fatalf("program: %#v", errs["program"])
	}
	if errs["urgency"][0] != "Urgency must be Low, Medium or High" {
		t.Fatalf("urgency: %#v", errs["urgency"])
	}
}

func TestValidate_OK(t *testing.T) {
	errs, err := Validate(intakeLike{
		Name:    "Jane",
		Contact: "0701XXXXXX",
		Program: "Land Mediation",
		Urgency: "High",
	})
	if err != nil || errs != nil {
		t.Fatalf("want no errors, got %#v %v", errs, err)
	}
}
