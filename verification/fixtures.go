// Package verification is the deployment gate. It builds a deterministic
// synthetic multi-tenant dataset, exercises every isolation invariant
// against it, and refuses to pass while any critical scenario fails.
package verification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/duetcare/access-engine/models"
	"github.com/duetcare/access-engine/repositories"
	"github.com/google/uuid"
)

const (
	pairedUserCount   = 52 // 26 pairings
	unpairedUserCount = 8
)

// fixtureNamespace seeds every generated ID. Fixed, so two harness runs
// produce byte-identical fixtures.
var fixtureNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// fixtureID derives a stable UUID from a fixture name
func fixtureID(name string) uuid.UUID {
	return uuid.NewSHA1(fixtureNamespace, []byte(name))
}

// Fixtures is the synthetic dataset the scenario suite runs against
type Fixtures struct {
	Users    []*models.User
	Pairings []*models.Pairing
	Unpaired []*models.User

	// InactiveUser carries safety signals that outlive the account
	InactiveUser *models.User

	// FormerPairing was deactivated after accumulating communication
	// history; OrphanRecord belongs to it.
	FormerPairing *models.Pairing
	FormerMemberA *models.User
	FormerMemberB *models.User
	OrphanRecord  *models.CommunicationRecord

	// MalformedSubjects must all resolve to no user
	MalformedSubjects []string

	// Per-pairing seeded records, keyed by pairing ID
	Communications map[uuid.UUID]*models.CommunicationRecord
	Assessments    map[uuid.UUID]*models.AssessmentResponse
}

// SubjectOf returns the external subject a fixture user authenticates as
func SubjectOf(index int) string {
	return fmt.Sprintf("fixture-subject-%03d", index)
}

// Member returns the i-th member of the n-th pairing (i is 0 or 1)
func (f *Fixtures) Member(pairing, i int) *models.User {
	return f.Users[pairing*2+i]
}

// BuildFixtures populates the store with the deterministic dataset:
// 52 paired users across 26 pairings, 8 unpaired users, a deactivated
// user with surviving vital-interest records, a deactivated pairing with
// orphaned history, and per-user private records throughout.
func BuildFixtures(ctx context.Context, repos *repositories.Repositories) (*Fixtures, error) {
	f := &Fixtures{
		Communications: make(map[uuid.UUID]*models.CommunicationRecord),
		Assessments:    make(map[uuid.UUID]*models.AssessmentResponse),
		MalformedSubjects: []string{
			"",
			"   ",
			strings.Repeat("x", 300),
			"fixture-subject-does-not-exist",
		},
	}

	now := time.Now()

	for i := 0; i < pairedUserCount+unpairedUserCount; i++ {
		user := &models.User{
			ID:              fixtureID(fmt.Sprintf("user-%03d", i)),
			ExternalSubject: SubjectOf(i),
			DisplayName:     fmt.Sprintf("Fixture User %03d", i),
			Active:          true,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := repos.Users.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to create fixture user %d: %w", i, err)
		}
		f.Users = append(f.Users, user)
		if i >= pairedUserCount {
			f.Unpaired = append(f.Unpaired, user)
		}
	}

	relationshipTypes := []models.RelationshipType{
		models.RelationshipPartners,
		models.RelationshipEngaged,
		models.RelationshipMarried,
		models.RelationshipCoParents,
	}

	for p := 0; p < pairedUserCount/2; p++ {
		userA := f.Users[p*2]
		userB := f.Users[p*2+1]
		pairing := &models.Pairing{
			ID:               fixtureID(fmt.Sprintf("pairing-%03d", p)),
			UserAID:          userA.ID,
			UserBID:          userB.ID,
			RelationshipType: relationshipTypes[p%len(relationshipTypes)],
			Active:           true,
			Version:          1,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := repos.Pairings.Create(ctx, pairing); err != nil {
			return nil, fmt.Errorf("failed to create fixture pairing %d: %w", p, err)
		}
		f.Pairings = append(f.Pairings, pairing)

		if err := seedPairingRecords(ctx, repos, f, p, pairing, userA); err != nil {
			return nil, err
		}
	}

	for i, user := range f.Users {
		if err := seedUserRecords(ctx, repos, i, user); err != nil {
			return nil, err
		}
	}

	if err := seedInactiveUser(ctx, repos, f); err != nil {
		return nil, err
	}
	if err := seedFormerPairing(ctx, repos, f); err != nil {
		return nil, err
	}

	return f, nil
}

func seedUserRecords(ctx context.Context, repos *repositories.Repositories, i int, user *models.User) error {
	preference := &models.PreferenceRecord{
		ID:          fixtureID(fmt.Sprintf("preference-%03d", i)),
		OwnerUserID: user.ID,
		Settings:    json.RawMessage(fmt.Sprintf(`{"theme": "dark", "seq": %d}`, i)),
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}
	if err := repos.Preferences.Upsert(ctx, preference); err != nil {
		return fmt.Errorf("failed to seed preference %d: %w", i, err)
	}

	profile := &models.SafetyProfile{
		ID:          fixtureID(fmt.Sprintf("safety-profile-%03d", i)),
		OwnerUserID: user.ID,
		Plan:        json.RawMessage(fmt.Sprintf(`{"contacts": ["line-%d"]}`, i)),
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}
	if err := repos.SafetyProfiles.Upsert(ctx, profile); err != nil {
		return fmt.Errorf("failed to seed safety profile %d: %w", i, err)
	}

	// Every third user carries a vital-interest signal
	if i%3 == 0 {
		signal := &models.SafetySignal{
			ID:          fixtureID(fmt.Sprintf("signal-%03d", i)),
			OwnerUserID: user.ID,
			Source:      "crisis-detector",
			Payload:     json.RawMessage(fmt.Sprintf(`{"level": %d}`, i%4)),
			RecordedAt:  user.CreatedAt,
		}
		if err := repos.SafetySignals.Append(ctx, signal); err != nil {
			return fmt.Errorf("failed to seed signal %d: %w", i, err)
		}
	}
	return nil
}

func seedPairingRecords(ctx context.Context, repos *repositories.Repositories, f *Fixtures, p int, pairing *models.Pairing, sender *models.User) error {
	record := &models.CommunicationRecord{
		ID:           fixtureID(fmt.Sprintf("communication-%03d", p)),
		PairingID:    pairing.ID,
		SenderUserID: sender.ID,
		Payload:      json.RawMessage(fmt.Sprintf(`"ciphertext-%03d"`, p)),
		CreatedAt:    pairing.CreatedAt,
	}
	if err := repos.Communications.Create(ctx, record); err != nil {
		return fmt.Errorf("failed to seed communication %d: %w", p, err)
	}
	f.Communications[pairing.ID] = record

	response := &models.AssessmentResponse{
		ID:            fixtureID(fmt.Sprintf("assessment-%03d", p)),
		OwnerUserID:   sender.ID,
		PairingID:     pairing.ID,
		AssessmentKey: "relationship-check-in",
		Score:         json.RawMessage(fmt.Sprintf(`{"total": %d}`, 40+p)),
		CreatedAt:     pairing.CreatedAt,
		UpdatedAt:     pairing.UpdatedAt,
	}
	if err := repos.Assessments.Create(ctx, response); err != nil {
		return fmt.Errorf("failed to seed assessment %d: %w", p, err)
	}
	f.Assessments[pairing.ID] = response
	return nil
}

func seedInactiveUser(ctx context.Context, repos *repositories.Repositories, f *Fixtures) error {
	user := &models.User{
		ID:              fixtureID("user-inactive"),
		ExternalSubject: "fixture-subject-inactive",
		DisplayName:     "Closed Account",
		Active:          false,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	if err := repos.Users.Create(ctx, user); err != nil {
		return fmt.Errorf("failed to create inactive fixture user: %w", err)
	}
	f.InactiveUser = user

	// Vital-interest records persist after account closure
	signal := &models.SafetySignal{
		ID:          fixtureID("signal-inactive"),
		OwnerUserID: user.ID,
		Source:      "crisis-detector",
		Payload:     json.RawMessage(`{"level": 3}`),
		RecordedAt:  time.Now(),
	}
	if err := repos.SafetySignals.Append(ctx, signal); err != nil {
		return fmt.Errorf("failed to seed inactive user signal: %w", err)
	}
	return nil
}

func seedFormerPairing(ctx context.Context, repos *repositories.Repositories, f *Fixtures) error {
	now := time.Now()
	memberA := &models.User{
		ID:              fixtureID("user-former-a"),
		ExternalSubject: "fixture-subject-former-a",
		DisplayName:     "Former Member A",
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	memberB := &models.User{
		ID:              fixtureID("user-former-b"),
		ExternalSubject: "fixture-subject-former-b",
		DisplayName:     "Former Member B",
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for _, u := range []*models.User{memberA, memberB} {
		if err := repos.Users.Create(ctx, u); err != nil {
			return fmt.Errorf("failed to create former member: %w", err)
		}
	}

	pairing := &models.Pairing{
		ID:               fixtureID("pairing-former"),
		UserAID:          memberA.ID,
		UserBID:          memberB.ID,
		RelationshipType: models.RelationshipPartners,
		Active:           true,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := repos.Pairings.Create(ctx, pairing); err != nil {
		return fmt.Errorf("failed to create former pairing: %w", err)
	}

	// History written while the pairing was alive
	record := &models.CommunicationRecord{
		ID:           fixtureID("communication-former"),
		PairingID:    pairing.ID,
		SenderUserID: memberA.ID,
		Payload:      json.RawMessage(`"orphaned-ciphertext"`),
		CreatedAt:    now,
	}
	if err := repos.Communications.Create(ctx, record); err != nil {
		return fmt.Errorf("failed to seed orphaned communication: %w", err)
	}

	if err := repos.Pairings.Deactivate(ctx, pairing.ID, pairing.Version); err != nil {
		return fmt.Errorf("failed to deactivate former pairing: %w", err)
	}
	pairing.Active = false
	pairing.Version++

	f.FormerPairing = pairing
	f.FormerMemberA = memberA
	f.FormerMemberB = memberB
	f.OrphanRecord = record
	return nil
}
