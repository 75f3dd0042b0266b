package domain

import "time"

// Role classifies an actor within the banking platform. The set is closed:
// authorization decisions switch exhaustively over these values.
type Role string

const (
	RoleCustomer         Role = "customer"
	RoleAccountExecutive Role = "account_executive"
	RoleTeller           Role = "teller"
	RoleBranchManager    Role = "branch_manager"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleAccountExecutive, RoleTeller, RoleBranchManager:
		return true
	}
	return false
}

// AccountStatus represents the lockout state of an identity.
type AccountStatus string

const (
	StatusActive AccountStatus = "active"
	StatusLocked AccountStatus = "locked"
)

// SecurityQuestion identifies the recovery question chosen at registration.
type SecurityQuestion string

const (
	QuestionMaidenName      SecurityQuestion = "maiden_name"
	QuestionFavoriteColor   SecurityQuestion = "favorite_color"
	QuestionBirthCity       SecurityQuestion = "birth_city"
	QuestionChildhoodFriend SecurityQuestion = "childhood_friend"
)

// Valid reports whether q is one of the known security questions.
func (q SecurityQuestion) Valid() bool {
	switch q {
	case QuestionMaidenName, QuestionFavoriteColor, QuestionBirthCity, QuestionChildhoodFriend:
		return true
	}
	return false
}

// User is an identity in the credential store. OTP and OTPExpiry are always
// set and cleared together; an empty OTP never validates. Version backs the
// store's optimistic concurrency control and is bumped on every save.
type User struct {
	ID               string           `json:"id"`
	Username         string           `json:"username"`
	Email            string           `json:"email"`
	PasswordHash     string           `json:"-"`
	FirstName        string           `json:"first_name"`
	MiddleName       string           `json:"middle_name,omitempty"`
	LastName         string           `json:"last_name"`
	IDNumber         int64            `json:"id_no"`
	SecurityQuestion SecurityQuestion `json:"security_question"`
	SecurityAnswer   string           `json:"-"`
	Role             Role             `json:"role"`
	AccountStatus    AccountStatus    `json:"account_status"`

	FailedLoginAttempts int        `json:"-"`
	LastFailedLogin     *time.Time `json:"-"`
	OTP                 string     `json:"-"`
	OTPExpiry           *time.Time `json:"-"`

	Version   int64     `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SetOTP installs code as the single outstanding OTP, replacing any
// previous one.
func (u *User) SetOTP(code string, expiry time.Time) {
	u.OTP = code
	u.OTPExpiry = &expiry
}

// ClearOTP removes the outstanding OTP, if any.
func (u *User) ClearOTP() {
	u.OTP = ""
	u.OTPExpiry = nil
}

// HasActiveOTP reports whether an OTP is outstanding and unexpired at now.
func (u *User) HasActiveOTP(now time.Time) bool {
	return u.OTP != "" && u.OTPExpiry != nil && u.OTPExpiry.After(now)
}

// FullName returns the user's display name.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}
