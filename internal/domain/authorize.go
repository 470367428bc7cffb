package domain

type Decision bool

const (
	Allow Decision = true
	Deny  Decision = false
)

func (d Decision) String() string {
	if d {
		return "allow"
	}
	return "deny"
}

// Authorize 只看账户当前的权限集合，不看角色：角色仅决定创建时的默认值。
// 停用的账户对任何操作都返回 Deny。
func Authorize(account *Account, p Permission) (Decision, error) {
	granted, err := account.permissionsOrEmpty().Get(p)
	if err != nil {
		return Deny, err
	}
	if account == nil || !account.IsActive {
		return Deny, nil
	}
	return Decision(granted), nil
}

// AuthorizeAny 在任意一个权限通过时返回 Allow
func AuthorizeAny(account *Account, perms ...Permission) (Decision, error) {
	for _, p := range perms {
		d, err := Authorize(account, p)
		if err != nil {
			return Deny, err
		}
		if d == Allow {
			return Allow, nil
		}
	}
	return Deny, nil
}

func (a *Account) permissionsOrEmpty() PermissionSet {
	if a == nil {
		return PermissionSet{}
	}
	return a.Permissions
}
