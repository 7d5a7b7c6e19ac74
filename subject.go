package auth

// Subject is anything a permission check is evaluated against: an
// authenticated *User or an AnonymousSubject.
type Subject interface {
	// SubjectID is empty for anonymous subjects
	SubjectID() string
	IsAnonymous() bool
	Can(perm Permission) bool
	IsAdministrator() bool
}

var (
	_ Subject = (*User)(nil)
	_ Subject = AnonymousSubject{}
)

// Can evaluates perm against subject. A nil subject holds nothing.
func Can(subject Subject, perm Permission) bool {
	if subject == nil {
		return false
	}
	return subject.Can(perm)
}

// AnonymousPolicy holds the server wide flags that decide what a visitor
// without an account may do.
type AnonymousPolicy struct {
	CommentsEnabled     bool
	RegistrationEnabled bool
}

// AnonymousPolicyFromConfig reads the policy flags from cfg
func AnonymousPolicyFromConfig(cfg Config) AnonymousPolicy {
	if cfg == nil {
		return AnonymousPolicy{}
	}
	return AnonymousPolicy{
		CommentsEnabled:     cfg.GetCommentsEnabled(),
		RegistrationEnabled: cfg.GetRegistrationEnabled(),
	}
}

// AnonymousSubject is the visitor with no session. Its grants are driven by
// configuration instead of being uniformly denied.
type AnonymousSubject struct {
	Policy AnonymousPolicy
}

// NewAnonymousSubject returns a visitor governed by policy
func NewAnonymousSubject(policy AnonymousPolicy) AnonymousSubject {
	return AnonymousSubject{Policy: policy}
}

func (AnonymousSubject) SubjectID() string { return "" }

func (AnonymousSubject) IsAnonymous() bool { return true }

func (AnonymousSubject) IsAdministrator() bool { return false }

// Can matches the requested permission exactly: COMMENT follows the
// comments flag, LOGIN follows the registration flag, anything else
// (including unions) is denied.
func (a AnonymousSubject) Can(perm Permission) bool {
	switch perm {
	case PermissionComment:
		return a.Policy.CommentsEnabled
	case PermissionLogin:
		return a.Policy.RegistrationEnabled
	default:
		return false
	}
}
