// Command bootstrap seeds a fresh deployment: writes the starter template
// manifest, creates the SQLite database with a demo inspection, and prints
// ready-to-use access tokens for each role.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/fieldsafe/sentinel/pkg/auth"
	"github.com/fieldsafe/sentinel/pkg/contracts"
	"github.com/fieldsafe/sentinel/pkg/store"
	"github.com/fieldsafe/sentinel/pkg/template"
)

const starterManifest = `schema_version: "1.0.0"
template:
  id: tpl-forklift-daily
  name: Forklift Daily Check
  description: Pre-shift walkaround for counterbalance forklifts.
  version: "1.0.0"
  sections:
    - id: sec-mechanical
      title: Mechanical
      items:
        - id: item-brakes
          prompt: Service and parking brakes respond?
          required: true
          evidence_required_on_fail: true
        - id: item-forks
          prompt: Forks free of cracks and bends?
          required: true
          evidence_required_on_fail: true
        - id: item-horn
          prompt: Horn audible from 10 m?
          required: true
    - id: sec-operator
      title: Operator Station
      items:
        - id: item-seatbelt
          prompt: Seat belt latches and retracts?
          required: true
        - id: item-mirrors
          prompt: Mirrors clean and adjusted?
          required: false
`

func main() {
	var (
		dbPath       string
		templatesDir string
		secret       string
		withDemo     bool
	)
	flag.StringVar(&dbPath, "db", "sentinel.db", "SQLite database path")
	flag.StringVar(&templatesDir, "templates", "templates", "Template manifest directory")
	flag.StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "JWT signing secret")
	flag.BoolVar(&withDemo, "demo", true, "Seed a demo inspection")
	flag.Parse()

	ctx := context.Background()

	// 1. Starter template manifest.
	if err := os.MkdirAll(templatesDir, 0o750); err != nil {
		log.Fatalf("create templates dir: %v", err)
	}
	manifestPath := filepath.Join(templatesDir, "forklift_daily.yaml")
	if _, err := os.Stat(manifestPath); os.IsNotExist(err) {
		if err := os.WriteFile(manifestPath, []byte(starterManifest), 0o640); err != nil {
			log.Fatalf("write manifest: %v", err)
		}
		log.Printf("[bootstrap] template manifest: %s", manifestPath)
	} else {
		log.Printf("[bootstrap] template manifest exists, keeping: %s", manifestPath)
	}

	tpl, err := template.LoadFile(manifestPath, time.Now)
	if err != nil {
		log.Fatalf("manifest does not parse: %v", err)
	}

	// 2. Database.
	st, err := store.OpenSQLite(dbPath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer func() { _ = st.Close() }()
	log.Printf("[bootstrap] database ready: %s", dbPath)

	if withDemo {
		if err := seedDemo(ctx, st, tpl); err != nil {
			log.Fatalf("seed demo data: %v", err)
		}
	}

	// 3. Tokens.
	if secret == "" {
		log.Println("[bootstrap] no JWT secret; skipping token minting (set JWT_SECRET)")
		return
	}
	verifier := auth.NewVerifier(secret)
	for _, u := range []struct {
		id, name, role string
	}{
		{"u-admin", "Site Admin", "admin"},
		{"u-ines", "Ines (inspector)", "inspector"},
		{"u-rava", "Rava (reviewer)", "reviewer"},
		{"u-omar", "Omar (action owner)", "action_owner"},
	} {
		now := time.Now()
		token, err := verifier.Sign(auth.Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   u.id,
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(30 * 24 * time.Hour)),
			},
			Name:  u.name,
			Roles: []string{u.role},
		})
		if err != nil {
			log.Fatalf("sign token for %s: %v", u.id, err)
		}
		fmt.Printf("%s\t%s\n", u.id, token)
	}
}

// seedDemo creates one in-progress inspection with a failing brake check and
// an open corrective action, so a fresh install has something to look at.
func seedDemo(ctx context.Context, st *store.SQLite, tpl *contracts.Template) error {
	existing, err := st.ListInspections(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		log.Println("[bootstrap] inspections exist, skipping demo seed")
		return nil
	}

	now := time.Now().UTC()
	insp := &contracts.Inspection{
		ID:          uuid.NewString(),
		TemplateID:  tpl.ID,
		InspectorID: "u-ines",
		CreatedByID: "u-ines",
		Status:      contracts.InspectionDraft,
		Origin:      contracts.OriginIndependent,
		Location:    "Warehouse B, Dock 4",
		StartedAt:   now,
	}
	if err := st.PutInspection(ctx, insp); err != nil {
		return err
	}

	failing := &contracts.Response{
		ID:             uuid.NewString(),
		InspectionID:   insp.ID,
		TemplateItemID: "item-brakes",
		Result:         contracts.ResultFail,
		Note:           "parking brake does not hold on the dock ramp",
		EvidenceRefs:   []string{"photo://brakes-dock4.jpg"},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := st.PutResponse(ctx, failing); err != nil {
		return err
	}

	passing := &contracts.Response{
		ID:             uuid.NewString(),
		InspectionID:   insp.ID,
		TemplateItemID: "item-horn",
		Result:         contracts.ResultPass,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := st.PutResponse(ctx, passing); err != nil {
		return err
	}

	due := now.AddDate(0, 0, 1)
	action := &contracts.CorrectiveAction{
		ID:                 uuid.NewString(),
		InspectionID:       insp.ID,
		ResponseID:         failing.ID,
		Title:              "Service parking brake on FL-07",
		Severity:           contracts.SeverityHigh,
		Status:             contracts.ActionOpen,
		OccurrenceSeverity: contracts.SeverityHigh,
		InjurySeverity:     contracts.SeverityHigh,
		DueDate:            &due,
		AssignedToID:       "u-omar",
		WorkOrderRequired:  true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := st.PutAction(ctx, action); err != nil {
		return err
	}

	log.Printf("[bootstrap] demo inspection: %s", insp.ID)
	return nil
}
