package cases

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/uclf/legal-aid-portal/internal/auth"
	"github.com/uclf/legal-aid-portal/internal/events"
	"github.com/uclf/legal-aid-portal/internal/storage"
	"github.com/uclf/legal-aid-portal/pkg/database"
	"github.com/uclf/legal-aid-portal/pkg/models"
	"github.com/uclf/legal-aid-portal/pkg/utils"
)

/* ============================================================================
   Helpers
   ============================================================================ */

var fixedNow = time.Date(2024, 3, 22, 10, 0, 0, 0, time.UTC)

// openTestDB opens a throwaway SQLite database with every table migrated.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open("sqlite://"+filepath.Join(t.TempDir(), "cases.db"), false)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

type fixture struct {
	db      *gorm.DB
	svc     *Service
	events  *events.Recorder
	objects *storage.Memory
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := openTestDB(t)
	rec := &events.Recorder{}
	objs := storage.NewMemory()
	svc := NewService(db, Options{
		RefPrefix: "UCLF",
		Now:       func() time.Time { return fixedNow },
		Events:    rec,
		Objects:   objs,
	})
	return fixture{db: db, svc: svc, events: rec, objects: objs}
}

// injectAuth stands in for RequireSession. An empty tier leaves the request anonymous.
func injectAuth(profileID string, tier models.Role, name string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if tier != "" {
			c.Locals("profileID", profileID)
			c.Locals("tier", tier)
			c.Locals("name", name)
		}
		return c.Next()
	}
}

// newTestApp mounts the case routes the same way the server does.
// Static paths are added before parameterized ones.
func newTestApp(h *Handler, tier models.Role, name string) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: auth.ErrorHandler})
	app.Use(injectAuth("p-test", tier, name))

	app.Post("/api/cases", h.Intake)
	app.Get("/api/cases/track/:ref", h.Track)
	app.Post("/api/cases/track/:ref/files", h.UploadDocuments)

	staff := app.Group("/api", auth.RequireRole(models.RoleFullMember, models.RoleAdmin))
	staff.Get("/cases", h.List)
	staff.Get("/files/:fileID/signed-url", h.SignedDownloadURL)
	staff.Get("/cases/:id", h.Get)
	staff.Get("/cases/:id/history", h.History)
	staff.Patch("/cases/:id/status", h.Transition)

	admin := app.Group("/api", auth.RequireRole(models.RoleAdmin))
	admin.Patch("/cases/:id", h.Update)
	admin.Post("/cases/:id/archive", h.Archive)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func validIntake() IntakeRequest {
	return IntakeRequest{
		RequesterName:    "Grace Atim",
		RequesterContact: "0772123456",
		Location:         "Kayunga",
		Program:          string(models.ProgramBailBondAssist),
		Urgency:          string(models.UrgencyHigh),
		Description:      "Son detained at Kayunga police post for five days without charge.",
	}
}

// insertCase stores a case directly, bypassing intake.
func insertCase(t *testing.T, db *gorm.DB, cs models.Case) models.Case {
	t.Helper()
	if cs.CaseRef == "" {
		cs.CaseRef = "UCLF-2024-" + uuid.NewString()[:4]
	}
	if cs.RequesterName == "" {
		cs.RequesterName = "Test Requester"
	}
	if cs.Urgency == "" {
		cs.Urgency = models.UrgencyMedium
	}
	if cs.Status == "" {
		cs.Status = models.CasePending
	}
	if cs.SubmissionDate == "" {
		cs.SubmissionDate = "2024-03-01"
	}
	if cs.Program == "" {
		cs.Program = models.ProgramMagistratesRep
	}
	if err := db.Create(&cs).Error; err != nil {
		t.Fatal(err)
	}
	return cs
}

/* ============================================================================
   References
   ============================================================================ */

func TestRefGenerator_PatternOverManyDraws(t *testing.T) {
	g := NewRefGenerator("uclf")
	re := g.Pattern()
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		ref := g.Next(2024)
		if !re.MatchString(ref) {
			t.Fatalf("ref %q does not match %s", ref, re)
		}
		if !strings.HasPrefix(ref, "UCLF-2024-") {
			t.Fatalf("unexpected prefix in %q", ref)
		}
		seen[ref] = struct{}{}
	}
	// 9000 possible suffixes: collisions happen, but most draws are distinct.
	if len(seen) < 800 {
		t.Fatalf("too many collisions: %d distinct refs", len(seen))
	}
}

func TestRefGenerator_RetriesOnCollision(t *testing.T) {
	g := NewRefGenerator("UCLF")
	calls := 0
	draws := []int{0, 0, 42}
	g.intn = func(int) int { return draws[calls] }

	ref, err := g.Unique(context.Background(), 2024, func(_ context.Context, r string) (bool, error) {
		calls++
		return r == "UCLF-2024-1000", nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if ref != "UCLF-2024-1042" {
		t.Fatalf("want UCLF-2024-1042, got %s", ref)
	}
}

func TestRefGenerator_Exhausted(t *testing.T) {
	g := NewRefGenerator("UCLF")
	_, err := g.Unique(context.Background(), 2024, func(context.Context, string) (bool, error) { return true, nil })
	if err != ErrRefExhausted {
		t.Fatalf("want ErrRefExhausted, got %v", err)
	}
}

/* ============================================================================
   Intake
   ============================================================================ */

func TestIntake_CreatesPendingCase(t *testing.T) {
	f := newFixture(t)
	cs, err := f.svc.Intake(context.Background(), validIntake(), utils.Actor{})
	if err != nil {
		t.Fatal(err)
	}
	if !NewRefGenerator("UCLF").Pattern().MatchString(cs.CaseRef) || !strings.HasPrefix(cs.CaseRef, "UCLF-2024-") {
		t.Fatalf("bad ref %q", cs.CaseRef)
	}
	if cs.Status != models.CasePending {
		t.Fatalf("want Pending, got %s", cs.Status)
	}
	if cs.SubmissionDate != "2024-03-22" {
		t.Fatalf("submission date = %s", cs.SubmissionDate)
	}
	if cs.CourtLevel != IntakeCourtLevel || cs.LatestUpdate != IntakeLatestUpdate {
		t.Fatalf("intake defaults not applied: %+v", cs)
	}
	if cs.AssignedAdvocate != "" {
		t.Fatalf("new case must not have an advocate")
	}

	hist, _ := f.svc.History(context.Background(), cs.ID)
	if len(hist) != 1 || hist[0].Action != utils.ActionCreated {
		t.Fatalf("want one created history entry, got %+v", hist)
	}
	if got := f.events.OfType(events.CaseCreated); len(got) != 1 || got[0].CaseRef != cs.CaseRef {
		t.Fatalf("case.created not published: %+v", got)
	}
}

func TestIntake_HTTP_ValidationErrors(t *testing.T) {
	f := newFixture(t)
	app := newTestApp(NewHandler(f.svc, nil), "", "")

	in := validIntake()
	in.RequesterName = ""
	in.Program = "Tax Advice"
	in.Urgency = "Critical"
	in.RequesterContact = "call me"

	resp := doJSON(t, app, "POST", "/api/cases", in)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("want validation status, got %d", resp.StatusCode)
	}
	var body models.ValidationErrorResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)
	for _, k := range []string{"requesterName", "program", "urgency", "requesterContact"} {
		if len(body.Errors[k]) == 0 {
			t.Fatalf("expected error for %s, got %+v", k, body.Errors)
		}
	}

	var n int64
	f.db.Model(&models.Case{}).Count(&n)
	if n != 0 {
		t.Fatalf("rejected intake must not persist, found %d cases", n)
	}
}

func TestIntake_HTTP_Created(t *testing.T) {
	f := newFixture(t)
	app := newTestApp(NewHandler(f.svc, nil), "", "")

	resp := doJSON(t, app, "POST", "/api/cases", validIntake())
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("want 201, got %d", resp.StatusCode)
	}
	var body IntakeResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body.CaseRef == "" || body.Status != models.CasePending {
		t.Fatalf("bad response %+v", body)
	}
}

/* ============================================================================
   Tracking
   ============================================================================ */

func TestTrack_CaseInsensitive(t *testing.T) {
	f := newFixture(t)
	if _, err := Seed(context.Background(), f.db); err != nil {
		t.Fatal(err)
	}

	upper, err := f.svc.Track(context.Background(), "UCLF-2024-8192")
	if err != nil {
		t.Fatal(err)
	}
	lower, err := f.svc.Track(context.Background(), "  uclf-2024-8192 ")
	if err != nil {
		t.Fatal(err)
	}
	if *upper != *lower {
		t.Fatalf("lookups differ:\n%+v\n%+v", upper, lower)
	}
	if upper.RequesterName != "Jane Nakato" || upper.Status != models.CaseInProgress {
		t.Fatalf("wrong record: %+v", upper)
	}
}

func TestTrack_NotFound(t *testing.T) {
	f := newFixture(t)
	for _, ref := range []string{"NO-SUCH-REF", "", "   "} {
		if _, err := f.svc.Track(context.Background(), ref); err != ErrCaseNotFound {
			t.Fatalf("track(%q): want ErrCaseNotFound, got %v", ref, err)
		}
	}

	app := newTestApp(NewHandler(f.svc, nil), "", "")
	resp := doJSON(t, app, "GET", "/api/cases/track/NO-SUCH-REF", nil)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("want 404, got %d", resp.StatusCode)
	}
	var body TrackNotFound
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body.Found || body.Message == "" {
		t.Fatalf("bad not-found body %+v", body)
	}
}

func TestTrack_MasksContact(t *testing.T) {
	f := newFixture(t)
	cs := insertCase(t, f.db, models.Case{CaseRef: "UCLF-2024-4242", RequesterContact: "0772123456"})

	app := newTestApp(NewHandler(f.svc, nil), "", "")
	resp := doJSON(t, app, "GET", "/api/cases/track/uclf-2024-4242", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var view TrackView
	_ = json.NewDecoder(resp.Body).Decode(&view)
	if view.CaseRef != cs.CaseRef {
		t.Fatalf("wrong case %q", view.CaseRef)
	}
	if view.RequesterContact != "0772XXXXXX" {
		t.Fatalf("contact not masked: %q", view.RequesterContact)
	}
}

/* ============================================================================
   Status transitions
   ============================================================================ */

func TestTransition_FromPendingReachesEveryTarget(t *testing.T) {
	targets := []models.CaseStatus{models.CaseAssigned, models.CaseInProgress, models.CaseResolved, models.CaseClosed}
	for _, next := range targets {
		t.Run(string(next), func(t *testing.T) {
			f := newFixture(t)
			orig := insertCase(t, f.db, models.Case{
				Status:           models.CasePending,
				AssignedAdvocate: "Counsel Grace Aber",
				Description:      "Land dispute",
				LatestUpdate:     "Awaiting review",
				CourtLevel:       "High Court",
				Location:         "Masaka",
			})

			got, err := f.svc.Transition(context.Background(), orig.ID, next, "", utils.Actor{ProfileID: "p1", Name: "Counsel Advocate"})
			if err != nil {
				t.Fatal(err)
			}
			if got.Status != next {
				t.Fatalf("want %s, got %s", next, got.Status)
			}

			stored, _ := f.svc.Get(context.Background(), orig.ID)
			if stored.Status != next {
				t.Fatalf("stored status %s", stored.Status)
			}
			if stored.AssignedAdvocate != orig.AssignedAdvocate ||
				stored.Description != orig.Description ||
				stored.LatestUpdate != orig.LatestUpdate ||
				stored.CourtLevel != orig.CourtLevel ||
				stored.Location != orig.Location ||
				stored.CaseRef != orig.CaseRef {
				t.Fatalf("fields changed by transition:\nbefore %+v\nafter  %+v", orig, stored)
			}
		})
	}
}

func TestTransition_AssignsAdvocateWhenMissing(t *testing.T) {
	f := newFixture(t)
	cs := insertCase(t, f.db, models.Case{})

	got, err := f.svc.Transition(context.Background(), cs.ID, models.CaseAssigned, "", utils.Actor{ProfileID: "p1", Name: "Counsel Advocate"})
	if err != nil {
		t.Fatal(err)
	}
	if got.AssignedAdvocate != "Counsel Advocate" {
		t.Fatalf("want actor as advocate, got %q", got.AssignedAdvocate)
	}

	cs2 := insertCase(t, f.db, models.Case{})
	got, err = f.svc.Transition(context.Background(), cs2.ID, models.CaseAssigned, "Counsel David K.", utils.Actor{Name: "Counsel Advocate"})
	if err != nil {
		t.Fatal(err)
	}
	if got.AssignedAdvocate != "Counsel David K." {
		t.Fatalf("explicit advocate ignored: %q", got.AssignedAdvocate)
	}
}

func TestTransition_RejectsBackwardsAndTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cases := []struct {
		from, to models.CaseStatus
	}{
		{models.CaseInProgress, models.CaseAssigned},
		{models.CaseAssigned, models.CasePending},
		{models.CaseResolved, models.CaseClosed},
		{models.CaseClosed, models.CaseInProgress},
		{models.CaseAssigned, models.CaseAssigned},
	}
	for _, tc := range cases {
		cs := insertCase(t, f.db, models.Case{Status: tc.from, AssignedAdvocate: "Counsel Advocate"})
		if _, err := f.svc.Transition(ctx, cs.ID, tc.to, "", utils.Actor{}); err != ErrInvalidTransition {
			t.Fatalf("%s -> %s: want ErrInvalidTransition, got %v", tc.from, tc.to, err)
		}
		stored, _ := f.svc.Get(ctx, cs.ID)
		if stored.Status != tc.from {
			t.Fatalf("rejected transition changed status to %s", stored.Status)
		}
	}
}

func TestTransition_HTTP(t *testing.T) {
	f := newFixture(t)
	cs := insertCase(t, f.db, models.Case{Status: models.CaseResolved, AssignedAdvocate: "Counsel Advocate"})
	open := insertCase(t, f.db, models.Case{})
	app := newTestApp(NewHandler(f.svc, nil), models.RoleFullMember, "Counsel Advocate")

	resp := doJSON(t, app, "PATCH", "/api/cases/"+cs.ID.String()+"/status", TransitionRequest{Status: string(models.CaseInProgress)})
	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("want 409, got %d", resp.StatusCode)
	}

	resp = doJSON(t, app, "PATCH", "/api/cases/"+open.ID.String()+"/status", TransitionRequest{Status: "Escalated"})
	if resp.StatusCode == 200 || resp.StatusCode == fiber.StatusConflict {
		t.Fatalf("unknown status must fail validation, got %d", resp.StatusCode)
	}

	resp = doJSON(t, app, "PATCH", "/api/cases/"+uuid.NewString()+"/status", TransitionRequest{Status: string(models.CaseAssigned)})
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("want 404, got %d", resp.StatusCode)
	}

	resp = doJSON(t, app, "PATCH", "/api/cases/"+open.ID.String()+"/status", TransitionRequest{Status: string(models.CaseInProgress)})
	if resp.StatusCode != 200 {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
	var body models.Case
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body.Status != models.CaseInProgress || body.AssignedAdvocate != "Counsel Advocate" {
		t.Fatalf("bad case after transition: %+v", body)
	}
	if got := f.events.OfType(events.CaseStatusChanged); len(got) != 1 {
		t.Fatalf("want one status event, got %d", len(got))
	}

	hist, _ := f.svc.History(context.Background(), open.ID)
	if len(hist) != 1 || hist[0].OldStatus != models.CasePending || hist[0].NewStatus != models.CaseInProgress {
		t.Fatalf("history not written: %+v", hist)
	}
}

func TestStaffRoutes_ForbiddenForMembers(t *testing.T) {
	f := newFixture(t)
	cs := insertCase(t, f.db, models.Case{})

	for _, tier := range []models.Role{models.RoleGuest, models.RoleStudent, models.RoleAssociate} {
		app := newTestApp(NewHandler(f.svc, nil), tier, "x")
		if resp := doJSON(t, app, "GET", "/api/cases", nil); resp.StatusCode != fiber.StatusForbidden {
			t.Fatalf("%s list: want 403, got %d", tier, resp.StatusCode)
		}
		resp := doJSON(t, app, "PATCH", "/api/cases/"+cs.ID.String()+"/status", TransitionRequest{Status: string(models.CaseAssigned)})
		if resp.StatusCode != fiber.StatusForbidden {
			t.Fatalf("%s transition: want 403, got %d", tier, resp.StatusCode)
		}
	}

	app := newTestApp(NewHandler(f.svc, nil), models.RoleFullMember, "Counsel Advocate")
	if resp := doJSON(t, app, "POST", "/api/cases/"+cs.ID.String()+"/archive", nil); resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("full member archive: want 403, got %d", resp.StatusCode)
	}
}

/* ============================================================================
   Listing, update, archive
   ============================================================================ */

func TestList_FiltersAndOrder(t *testing.T) {
	f := newFixture(t)
	if n, err := Seed(context.Background(), f.db); err != nil || n != 5 {
		t.Fatalf("seed: n=%d err=%v", n, err)
	}
	app := newTestApp(NewHandler(f.svc, nil), models.RoleFullMember, "Counsel Advocate")

	list := func(q string) PageCases {
		t.Helper()
		resp := doJSON(t, app, "GET", "/api/cases"+q, nil)
		if resp.StatusCode != 200 {
			t.Fatalf("GET %s: status %d", q, resp.StatusCode)
		}
		var p PageCases
		_ = json.NewDecoder(resp.Body).Decode(&p)
		return p
	}

	all := list("")
	if all.Total != 5 || len(all.Items) != 5 {
		t.Fatalf("want 5 cases, got %d", all.Total)
	}
	for i := 1; i < len(all.Items); i++ {
		if all.Items[i-1].SubmissionDate < all.Items[i].SubmissionDate {
			t.Fatalf("not sorted by submission date desc")
		}
	}

	if p := list("?filter=pending"); p.Total != 1 || p.Items[0].CaseRef != "UCLF-2024-5501" {
		t.Fatalf("pending filter: %+v", p)
	}
	if p := list("?filter=urgent"); p.Total != 3 {
		t.Fatalf("urgent filter: want 3, got %d", p.Total)
	}
	if p := list("?filter=assigned"); p.Total != 4 {
		t.Fatalf("assigned filter: want 4, got %d", p.Total)
	}
	if p := list("?filter=mine"); p.Total != 2 {
		t.Fatalf("mine filter: want 2, got %d", p.Total)
	}
	if p := list("?search=nakato"); p.Total != 1 || p.Items[0].CaseRef != "UCLF-2024-8192" {
		t.Fatalf("search by name: %+v", p)
	}
	if p := list("?search=uclf-2024-77"); p.Total != 1 {
		t.Fatalf("search by ref: want 1, got %d", p.Total)
	}
	if p := list("?page=2&pageSize=2"); p.Pages != 3 || len(p.Items) != 2 {
		t.Fatalf("pagination: pages=%d items=%d", p.Pages, len(p.Items))
	}

	if resp := doJSON(t, app, "GET", "/api/cases?filter=bogus", nil); resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("bogus filter: want 400, got %d", resp.StatusCode)
	}
}

func TestArchive_HidesFromListButStaysTrackable(t *testing.T) {
	f := newFixture(t)
	cs := insertCase(t, f.db, models.Case{CaseRef: "UCLF-2024-3131"})
	insertCase(t, f.db, models.Case{CaseRef: "UCLF-2024-3132"})
	app := newTestApp(NewHandler(f.svc, nil), models.RoleAdmin, "System Administrator")

	resp := doJSON(t, app, "POST", "/api/cases/"+cs.ID.String()+"/archive", ArchiveRequest{Reason: "duplicate"})
	if resp.StatusCode != 200 {
		t.Fatalf("archive: status %d", resp.StatusCode)
	}
	// archiving twice is a no-op
	if resp := doJSON(t, app, "POST", "/api/cases/"+cs.ID.String()+"/archive", nil); resp.StatusCode != 200 {
		t.Fatalf("second archive: status %d", resp.StatusCode)
	}

	items, total, err := f.svc.List(context.Background(), ListQuery{Page: 1, PageSize: 10, Filter: FilterAll})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || items[0].CaseRef != "UCLF-2024-3132" {
		t.Fatalf("archived case still listed: %+v", items)
	}
	_, total, _ = f.svc.List(context.Background(), ListQuery{Page: 1, PageSize: 10, Filter: FilterAll, Archived: true})
	if total != 2 {
		t.Fatalf("archived=true should include it, got %d", total)
	}

	if _, err := f.svc.Track(context.Background(), "uclf-2024-3131"); err != nil {
		t.Fatalf("archived case must stay trackable: %v", err)
	}

	hist, _ := f.svc.History(context.Background(), cs.ID)
	if len(hist) != 1 || hist[0].Action != utils.ActionArchived || hist[0].Reason != "duplicate" {
		t.Fatalf("archive history: %+v", hist)
	}
}

func TestUpdate_ChangesOnlyGivenFields(t *testing.T) {
	f := newFixture(t)
	cs := insertCase(t, f.db, models.Case{CourtLevel: "Magistrates Court Grade I", LatestUpdate: "old"})
	app := newTestApp(NewHandler(f.svc, nil), models.RoleAdmin, "System Administrator")

	resp := doJSON(t, app, "PATCH", "/api/cases/"+cs.ID.String(), map[string]any{"latestUpdate": "Hearing adjourned to 2 April."})
	if resp.StatusCode != 200 {
		t.Fatalf("status %d", resp.StatusCode)
	}
	stored, _ := f.svc.Get(context.Background(), cs.ID)
	if stored.LatestUpdate != "Hearing adjourned to 2 April." {
		t.Fatalf("latestUpdate = %q", stored.LatestUpdate)
	}
	if stored.CourtLevel != "Magistrates Court Grade I" || stored.Status != models.CasePending {
		t.Fatalf("untouched fields changed: %+v", stored)
	}
}

func TestUpdate_AdvocateFollowsStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := utils.Actor{ProfileID: "admin", Name: "System Administrator"}
	str := func(s string) *string { return &s }

	pending := insertCase(t, f.db, models.Case{})
	_, err := f.svc.Update(ctx, pending.ID, UpdateRequest{AssignedAdvocate: str("Counsel X")}, admin)
	var ve *ValidationError
	if !errors.As(err, &ve) || len(ve.Fields["assignedAdvocate"]) == 0 {
		t.Fatalf("advocate on Pending: want validation error, got %v", err)
	}
	if stored, _ := f.svc.Get(ctx, pending.ID); stored.AssignedAdvocate != "" {
		t.Fatalf("Pending case got advocate %q", stored.AssignedAdvocate)
	}

	for _, st := range []models.CaseStatus{models.CaseAssigned, models.CaseInProgress, models.CaseResolved} {
		cs := insertCase(t, f.db, models.Case{Status: st, AssignedAdvocate: "Counsel Advocate"})
		if _, err := f.svc.Update(ctx, cs.ID, UpdateRequest{AssignedAdvocate: str("  ")}, admin); !errors.As(err, &ve) {
			t.Fatalf("%s: clearing advocate: want validation error, got %v", st, err)
		}
		stored, _ := f.svc.Get(ctx, cs.ID)
		if stored.AssignedAdvocate != "Counsel Advocate" {
			t.Fatalf("%s: advocate cleared", st)
		}
		out, err := f.svc.Update(ctx, cs.ID, UpdateRequest{AssignedAdvocate: str("Counsel Y")}, admin)
		if err != nil || out.AssignedAdvocate != "Counsel Y" {
			t.Fatalf("%s: reassign: %v %+v", st, err, out)
		}
	}

	// over HTTP the rejection is a 400 with the field error
	app := newTestApp(NewHandler(f.svc, nil), models.RoleAdmin, "System Administrator")
	resp := doJSON(t, app, "PATCH", "/api/cases/"+pending.ID.String(), map[string]any{"assignedAdvocate": "Counsel X"})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("want 400, got %d", resp.StatusCode)
	}
}

/* ============================================================================
   Seed
   ============================================================================ */

func TestSeed_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := Seed(ctx, f.db); err != nil {
		t.Fatal(err)
	}
	n, err := Seed(ctx, f.db)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("second seed inserted %d rows", n)
	}
	total, _ := f.svc.Repository().Count(ctx)
	if total != int64(len(SeedCases())) {
		t.Fatalf("want %d cases, got %d", len(SeedCases()), total)
	}
}

/* ============================================================================
   Documents
   ============================================================================ */

type upload struct {
	name, contentType string
	data              []byte
}

func multipartBody(t *testing.T, files ...upload) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for _, u := range files {
		h := make(map[string][]string)
		h["Content-Disposition"] = []string{`form-data; name="files[]"; filename="` + u.name + `"`}
		h["Content-Type"] = []string{u.contentType}
		part, err := w.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = part.Write(u.data)
	}
	_ = w.Close()
	return buf, w.FormDataContentType()
}

func TestUploadDocuments(t *testing.T) {
	f := newFixture(t)
	cs := insertCase(t, f.db, models.Case{CaseRef: "UCLF-2024-2020"})
	app := newTestApp(NewHandler(f.svc, nil), "", "")

	body, ct := multipartBody(t,
		upload{"charge-sheet.pdf", "application/pdf", []byte("%PDF-1.4 test")},
		upload{"notes.txt", "text/plain", []byte("plain text")},
	)
	req := httptest.NewRequest("POST", "/api/cases/track/uclf-2024-2020/files", body)
	req.Header.Set("Content-Type", ct)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("want 201, got %d", resp.StatusCode)
	}
	var out struct {
		Results []map[string]any `json:"results"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	if len(out.Results) != 2 {
		t.Fatalf("want 2 results, got %d", len(out.Results))
	}
	if out.Results[0]["error"] != nil || out.Results[0]["id"] == nil {
		t.Fatalf("pdf should be accepted: %+v", out.Results[0])
	}
	if out.Results[1]["error"] == nil {
		t.Fatalf("txt should be rejected: %+v", out.Results[1])
	}

	stored, _ := f.svc.Get(context.Background(), cs.ID)
	if len(stored.Files) != 1 {
		t.Fatalf("want 1 stored file, got %d", len(stored.Files))
	}
	data, _, ok := f.objects.Get(stored.Files[0].Key)
	if !ok || string(data) != "%PDF-1.4 test" {
		t.Fatalf("object not stored")
	}

	staff := newTestApp(NewHandler(f.svc, nil), models.RoleFullMember, "Counsel Advocate")
	resp = doJSON(t, staff, "GET", "/api/files/"+stored.Files[0].ID.String()+"/signed-url", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("signed url: status %d", resp.StatusCode)
	}
	resp = doJSON(t, staff, "GET", "/api/files/"+uuid.NewString()+"/signed-url", nil)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("unknown file: want 404, got %d", resp.StatusCode)
	}
}

func TestAttachDocument_Limits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	insertCase(t, f.db, models.Case{CaseRef: "UCLF-2024-2121"})

	doc := func(size int64) Document {
		return Document{Name: "scan.png", ContentType: "image/png", Size: size, Body: bytes.NewReader(make([]byte, size))}
	}

	if _, err := f.svc.AttachDocument(ctx, "UCLF-2024-2121", doc(MaxDocumentBytes+1), utils.Actor{}); err == nil {
		t.Fatal("oversized document accepted")
	}
	for i := 0; i < MaxDocumentsPerRef; i++ {
		if _, err := f.svc.AttachDocument(ctx, "UCLF-2024-2121", doc(16), utils.Actor{}); err != nil {
			t.Fatalf("upload %d: %v", i, err)
		}
	}
	if _, err := f.svc.AttachDocument(ctx, "UCLF-2024-2121", doc(16), utils.Actor{}); err == nil {
		t.Fatal("sixth document accepted")
	}
	if _, err := f.svc.AttachDocument(ctx, "UCLF-2024-0000", doc(16), utils.Actor{}); err != ErrCaseNotFound {
		t.Fatalf("unknown ref: want ErrCaseNotFound, got %v", err)
	}
}

func TestAttachDocument_ConcurrentUploadsRespectLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	insertCase(t, f.db, models.Case{CaseRef: "UCLF-2024-3131"})

	const uploads = 8
	var wg sync.WaitGroup
	errs := make(chan error, uploads)
	for i := 0; i < uploads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.AttachDocument(ctx, "UCLF-2024-3131", Document{
				Name: "scan.pdf", ContentType: "application/pdf", Size: 16, Body: bytes.NewReader(make([]byte, 16)),
			}, utils.Actor{})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok, rejected := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrDocumentRejected):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != MaxDocumentsPerRef || rejected != uploads-MaxDocumentsPerRef {
		t.Fatalf("want %d stored and %d rejected, got %d and %d", MaxDocumentsPerRef, uploads-MaxDocumentsPerRef, ok, rejected)
	}
	var n int64
	f.db.Model(&models.CaseFile{}).Count(&n)
	if n != MaxDocumentsPerRef {
		t.Fatalf("want %d file rows, got %d", MaxDocumentsPerRef, n)
	}
}
