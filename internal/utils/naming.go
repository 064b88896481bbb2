package utils

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
	"unicode"

	"github.com/mozillazg/go-pinyin"
)

// FileSlug 将运行名称转换为可以用作文件名或对象键的形式
// 汉字转换为不带声调的拼音，其余非字母数字字符折叠为一个连字符
func FileSlug(name string) string {
	var b strings.Builder
	lastDash := true

	writeDash := func() {
		if !lastDash {
			b.WriteByte('-')
			lastDash = true
		}
	}

	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(unicode.ToLower(r))
			lastDash = false
		case unicode.Is(unicode.Han, r):
			syllables := pinyin.LazyConvert(string(r), nil)
			if len(syllables) == 0 {
				writeDash()
				continue
			}
			writeDash()
			b.WriteString(strings.Join(syllables, "-"))
			lastDash = false
		default:
			writeDash()
		}
	}

	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return "run"
	}
	return slug
}

// ReportFileName 生成运行报告的文件名，例如 42-di-yi-ci-pai-ke.xlsx
func ReportFileName(runID int64, runName string, ext string) string {
	return fmt.Sprintf("%d-%s.%s", runID, FileSlug(runName), strings.TrimPrefix(ext, "."))
}

var letters = []rune("abcdefghijklmnopqrstuvwxyz0123456789")

func GenerateRandomID(length int) string {
	id := make([]rune, length)
	for i := range id {
		id[i] = letters[rand.IntN(len(letters))]
	}
	return string(id)
}

// DefaultRunName 在用户没有指定名称时使用
func DefaultRunName(now time.Time) string {
	return "排课" + now.Format("20060102-150405") + "-" + GenerateRandomID(4)
}
