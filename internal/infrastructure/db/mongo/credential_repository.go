package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bankstream/auth-core/internal/core/domain"
)

const credentialCollection = "auth_users"

// CredentialRepository is the MongoDB-backed credential store. Saves are
// compare-and-swap on the document's version field so concurrent logins for
// the same identity never lose counter or OTP updates.
type CredentialRepository struct {
	coll *mongo.Collection
}

func NewCredentialRepository(db *mongo.Database) *CredentialRepository {
	return &CredentialRepository{coll: db.Collection(credentialCollection)}
}

type credentialDoc struct {
	ID               string     `bson:"_id"`
	Username         string     `bson:"username"`
	Email            string     `bson:"email"`
	PasswordHash     string     `bson:"password_hash"`
	FirstName        string     `bson:"first_name"`
	MiddleName       string     `bson:"middle_name,omitempty"`
	LastName         string     `bson:"last_name"`
	IDNumber         int64      `bson:"id_no"`
	SecurityQuestion string     `bson:"security_question"`
	SecurityAnswer   string     `bson:"security_answer"`
	Role             string     `bson:"role"`
	AccountStatus    string     `bson:"account_status"`
	FailedAttempts   int        `bson:"failed_login_attempts"`
	LastFailedLogin  *time.Time `bson:"last_failed_login,omitempty"`
	OTP              string     `bson:"otp,omitempty"`
	OTPExpiry        *time.Time `bson:"otp_expiry,omitempty"`
	Version          int64      `bson:"version"`
	CreatedAt        time.Time  `bson:"created_at"`
	UpdatedAt        time.Time  `bson:"updated_at"`
}

// EnsureIndexes creates the unique indexes the auth flows rely on. Email and
// otp carry the lookup paths; username and id_no back registration
// uniqueness.
func (r *CredentialRepository) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "id_no", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "otp", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("ensure auth indexes: %w", err)
	}
	return nil
}

func (r *CredentialRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	doc := toDoc(user)
	doc.Version = 1

	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("insert identity: %w", err)
	}
	return fromDoc(doc), nil
}

func (r *CredentialRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *CredentialRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// FindByActiveOTP looks the code up globally. The same filter covers both
// absent and expired codes, so the two cases are indistinguishable in result
// and in query shape.
func (r *CredentialRepository) FindByActiveOTP(ctx context.Context, code string, now time.Time) (*domain.User, error) {
	if code == "" {
		return nil, domain.ErrUserNotFound
	}
	return r.findOne(ctx, bson.M{"otp": code, "otp_expiry": bson.M{"$gt": now}})
}

// Save writes the record back if and only if its version is unchanged,
// bumping it in the same update. A lost race surfaces as
// domain.ErrVersionConflict for the caller to re-read and retry.
func (r *CredentialRepository) Save(ctx context.Context, user *domain.User) error {
	doc := toDoc(user)

	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": doc.ID, "version": doc.Version},
		bson.M{
			"$set": bson.M{
				"password_hash":         doc.PasswordHash,
				"account_status":        doc.AccountStatus,
				"failed_login_attempts": doc.FailedAttempts,
				"last_failed_login":     doc.LastFailedLogin,
				"otp":                   doc.OTP,
				"otp_expiry":            doc.OTPExpiry,
				"updated_at":            doc.UpdatedAt,
			},
			"$inc": bson.M{"version": 1},
		},
	)
	if err != nil {
		return fmt.Errorf("save identity: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrVersionConflict
	}

	user.Version++
	return nil
}

func (r *CredentialRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var doc credentialDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find identity: %w", err)
	}
	return fromDoc(&doc), nil
}

func toDoc(u *domain.User) *credentialDoc {
	return &credentialDoc{
		ID:               u.ID,
		Username:         u.Username,
		Email:            u.Email,
		PasswordHash:     u.PasswordHash,
		FirstName:        u.FirstName,
		MiddleName:       u.MiddleName,
		LastName:         u.LastName,
		IDNumber:         u.IDNumber,
		SecurityQuestion: string(u.SecurityQuestion),
		SecurityAnswer:   u.SecurityAnswer,
		Role:             string(u.Role),
		AccountStatus:    string(u.AccountStatus),
		FailedAttempts:   u.FailedLoginAttempts,
		LastFailedLogin:  u.LastFailedLogin,
		OTP:              u.OTP,
		OTPExpiry:        u.OTPExpiry,
		Version:          u.Version,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
}

func fromDoc(d *credentialDoc) *domain.User {
	return &domain.User{
		ID:                  d.ID,
		Username:            d.Username,
		Email:               d.Email,
		PasswordHash:        d.PasswordHash,
		FirstName:           d.FirstName,
		MiddleName:          d.MiddleName,
		LastName:            d.LastName,
		IDNumber:            d.IDNumber,
		SecurityQuestion:    domain.SecurityQuestion(d.SecurityQuestion),
		SecurityAnswer:      d.SecurityAnswer,
		Role:                domain.Role(d.Role),
		AccountStatus:       domain.AccountStatus(d.AccountStatus),
		FailedLoginAttempts: d.FailedAttempts,
		LastFailedLogin:     d.LastFailedLogin,
		OTP:                 d.OTP,
		OTPExpiry:           d.OTPExpiry,
		Version:             d.Version,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
}
