// 包 numtext 将页面上的本地化缩写计数（如 "1.2万"、"10.5K"、"3亿"）解析为非负整数。
// Parse 为纯函数且对任意输入都有定义：无法识别时返回 0，不会 panic。
package numtext

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// 数字字面量：允许千分位逗号与小数部分。
var numRe = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?|\.\d+`)

// Parse 解析文本中的第一个数字并按紧随其后的单位放大，结果向下取整。
func Parse(text string) int64 {
	if text == "" {
		return 0
	}
	loc := numRe.FindStringIndex(text)
	if loc == nil {
		return 0
	}
	lit := strings.ReplaceAll(text[loc[0]:loc[1]], ",", "")
	num, err := strconv.ParseFloat(lit, 64)
	if err != nil || math.IsNaN(num) || math.IsInf(num, 0) {
		return 0
	}
	v := math.Floor(num * unitOf(text[loc[1]:]))
	switch {
	case v <= 0:
		return 0
	case v >= math.MaxInt64:
		return math.MaxInt64
	}
	return int64(v)
}

// unitOf 返回数字之后的单位倍数。
// 单位与数字之间允许空白；拉丁单位之后不能再接拉丁字母，
// 否则 "12 comments" 会被误判为 12M。
func unitOf(rest string) float64 {
	rest = strings.TrimLeft(rest, " \t ")
	cjk, _ := utf8.DecodeRuneInString(rest)
	switch cjk {
	case '万':
		return 1e4
	case '亿':
		return 1e8
	case '千':
		return 1e3
	}
	r, size := utf8.DecodeRuneInString(rest)
	if r == utf8.RuneError {
		return 1
	}
	if next, _ := utf8.DecodeRuneInString(rest[size:]); next < utf8.RuneSelf && unicode.IsLetter(next) {
		return 1
	}
	switch unicode.ToUpper(r) {
	case 'W':
		return 1e4
	case 'K':
		return 1e3
	case 'M':
		return 1e6
	case 'B':
		return 1e9
	}
	return 1
}

// Format 将计数格式化为简短展示文本（亿/万/K），用于列表输出。
func Format(n int64) string {
	switch {
	case n <= 0:
		return "0"
	case n >= 100000000:
		return strconv.FormatFloat(float64(n)/1e8, 'f', 1, 64) + "亿"
	case n >= 10000:
		return strconv.FormatFloat(float64(n)/1e4, 'f', 1, 64) + "万"
	case n >= 1000:
		return strconv.FormatFloat(float64(n)/1e3, 'f', 1, 64) + "K"
	}
	return strconv.FormatInt(n, 10)
}
