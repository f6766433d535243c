package schema

// Access is the role of an account. Levels are ordered user < admin < SuperAdmin.
type Access string

const (
	AccessUser       Access = "user"
	AccessAdmin      Access = "admin"
	AccessSuperAdmin Access = "SuperAdmin"
)

// Valid reports whether a is a known access level.
func (a Access) Valid() bool {
	switch a {
	case AccessUser, AccessAdmin, AccessSuperAdmin:
		return true
	}
	return false
}

// UserAccount is a registered identity. PasswordHash never leaves the server.
type UserAccount struct {
	Email        string `json:"email" yaml:"email" gorm:"column:email;primaryKey;type:varchar(255)"`
	Name         string `json:"name" yaml:"name" gorm:"column:name;type:varchar(255);not null;uniqueIndex"`
	PasswordHash string `json:"-" yaml:"-" gorm:"column:password_hash;not null"`
	Access       Access `json:"access" yaml:"access" gorm:"column:access;type:varchar(20);not null;default:user"`
	// ID is assigned at registration and never reused, so an email that is
	// deleted and registered again gets a new one.
	ID string `json:"id" yaml:"id" gorm:"column:id;type:varchar(36);not null;default:''"`
}

// TableName pins the table used by SQL backends.
func (UserAccount) TableName() string {
	return "users"
}
