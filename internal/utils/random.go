package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	mrand "math/rand"
	"strings"

	"github.com/mozillazg/go-pinyin"
	"github.com/talentdesk/employer-access/backend/internal/domain"
)

var commonSurnames = []string{
	"王", "李", "张", "刘", "陈", "杨", "赵", "黄", "周", "吴",
	"徐", "孙", "胡", "朱", "高", "林", "何", "郭", "马", "罗",
}
var commonNameCharacters = []string{
	"伟", "强", "芳", "敏", "静", "丽", "刚", "杰", "娟", "勇",
	"艳", "涛", "明", "军", "磊", "洋", "勇", "霞", "飞", "玲",
	"超", "华", "平", "辉", "梅", "鑫", "龙", "鹏", "玉", "斌",
	"庆", "建", "丹", "彬", "凤", "旭", "宁", "乐", "成", "欣",
}

// 返回 (姓, 名)
func GenerateRandomChineseName() (string, string) {
	surname := commonSurnames[mrand.Intn(len(commonSurnames))]
	nameLength := mrand.Intn(2) + 1
	name := ""

	for i := 0; i < nameLength; i++ {
		name += commonNameCharacters[mrand.Intn(len(commonNameCharacters))]
	}
	return surname, name
}

var roles = []domain.Role{
	domain.RoleAdministrator,
	domain.RoleManagement,
	domain.RoleHRRecruitment,
}

func GenerateRandomRole() domain.Role {
	return roles[mrand.Intn(len(roles))]
}

var digits = "0123456789"

// 用姓名的拼音拼出邮箱的本地部分，例如 "王伟" -> "wang.wei42"
func GenerateEmailLocalPart(surname, name string) string {
	given := strings.Join(pinyin.LazyConvert(name, nil), "")
	family := strings.Join(pinyin.LazyConvert(surname, nil), "")

	local := family + "." + given
	digitsLength := mrand.Intn(3) + 1
	for i := 0; i < digitsLength; i++ {
		local += string(digits[mrand.Intn(len(digits))])
	}

	return local
}

// 生成随机身份信息，用于填充开发环境数据
func GenerateRandomIdentity(password string, emailDomain string) domain.Identity {
	surname, name := GenerateRandomChineseName()

	return domain.Identity{
		FirstName: name,
		LastName:  surname,
		Email:     GenerateEmailLocalPart(surname, name) + "@" + emailDomain,
		Password:  password,
		Confirm:   password,
	}
}

// 随机打开或关闭若干权限，模拟管理员的个别授权
func GenerateRandomOverrides(n int) domain.PermissionOverrides {
	all := domain.Permissions()
	overrides := make(domain.PermissionOverrides, n)
	for i := 0; i < n; i++ {
		overrides[all[mrand.Intn(len(all))]] = mrand.Intn(2) == 0
	}
	return overrides
}

func GenerateRandomOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

var letters = []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*")

// 密码和验证码使用 crypto/rand
func GenerateRandomPassword(length int) (string, error) {
	randomPassword := make([]rune, length)
	max := big.NewInt(int64(len(letters)))
	for i := range randomPassword {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		randomPassword[i] = letters[n.Int64()]
	}
	return string(randomPassword), nil
}
