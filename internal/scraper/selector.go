package scraper

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// getVal 解析表达式并支持使用 "||" 作为回退分隔，例如："img@src||img@data-src" 或 ".title||."。
func getVal(scope *goquery.Selection, expr string) string {
	expr = strings.TrimSpace(expr)
	if expr == "" || scope == nil {
		return ""
	}
	if strings.Contains(expr, "||") {
		for _, p := range strings.Split(expr, "||") {
			if v := getValSingle(scope, strings.TrimSpace(p)); v != "" {
				return v
			}
		}
		return ""
	}
	return getValSingle(scope, expr)
}

// getValSingle 解析单个表达式：文本或 属性 读取。
func getValSingle(scope *goquery.Selection, expr string) string {
	if expr == "" {
		return ""
	}
	if expr == "." {
		return strings.TrimSpace(scope.Text())
	}
	if at := strings.LastIndex(expr, "@"); at != -1 {
		sel := strings.TrimSpace(expr[:at])
		attr := strings.TrimSpace(expr[at+1:])
		if sel == "" {
			val, _ := scope.Attr(attr)
			return strings.TrimSpace(val)
		}
		val, _ := scope.Find(sel).First().Attr(attr)
		return strings.TrimSpace(val)
	}
	return strings.TrimSpace(scope.Find(expr).First().Text())
}

// abs 将相对链接转换为绝对 URL。
func abs(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "data:") {
		return ref
	}
	bu, err := url.Parse(base)
	if err != nil {
		return ref
	}
	ru, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return bu.ResolveReference(ru).String()
}
