package utils

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/elastic-io/mediagate/internal/log"
)

// ParseSize 解析带单位的大小，例如 "5K"、"5M"、"256M"
func ParseSize(s, unit string) (int, error) {
	sz := strings.TrimRight(s, "gGmMkK")
	if len(sz) == 0 {
		return -1, fmt.Errorf("%q:can't parse as num[gGmMkK]:%w", s, strconv.ErrSyntax)
	}
	amt, err := strconv.ParseUint(sz, 0, 0)
	if err != nil {
		return -1, err
	}
	if len(s) > len(sz) {
		unit = s[len(sz):]
	}
	switch unit {
	case "G", "g":
		return int(amt) << 30, nil
	case "M", "m":
		return int(amt) << 20, nil
	case "K", "k":
		return int(amt) << 10, nil
	case "":
		return int(amt), nil
	}
	return -1, fmt.Errorf("can not parse %q as num[gGmMkK]:%w", s, strconv.ErrSyntax)
}

// SplitSize 把 "5M" 拆成数值和单位两部分，纯数字时单位为空
func SplitSize(s string) (string, string) {
	l := len(s)
	if l == 0 {
		return s, ""
	}
	if strings.ContainsAny(s[l-1:], "gGmMkK") {
		return s[:l-1], s[l-1:]
	}
	return s, ""
}

func MustParseSize(s string) int {
	res, err := ParseSize(SplitSize(s))
	if err != nil {
		panic(err)
	}
	return res
}

func SafeGo(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Logger.Errorf("goroutine panic: %v", r)
			}
		}()
		fn()
	}()
}
