package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownRegion is returned when a region name is not part of the enumeration.
var ErrUnknownRegion = errors.New("unknown region")

// ErrNoRegion is returned when a region request resolves to nothing.
var ErrNoRegion = errors.New("no region specified")

// Region is a provincial-level administrative region as it is labeled in the
// registry's region selector (e.g. "北京市").
type Region string

// String returns the region label.
func (r Region) String() string {
	return string(r)
}

// Short returns the region name without its administrative suffix
// (e.g. "内蒙古" for "内蒙古自治区").
func (r Region) Short() string {
	return shortNames[r]
}

// regions lists the 31 provincial-level regions in the registry's display order.
var regions = []Region{
	"北京市", "天津市", "河北省", "山西省", "内蒙古自治区",
	"辽宁省", "吉林省", "黑龙江省", "上海市", "江苏省",
	"浙江省", "安徽省", "福建省", "江西省", "山东省",
	"河南省", "湖北省", "湖南省", "广东省", "广西壮族自治区",
	"海南省", "重庆市", "四川省", "贵州省", "云南省",
	"西藏自治区", "陕西省", "甘肃省", "青海省", "宁夏回族自治区",
	"新疆维吾尔自治区",
}

// shortNames maps each region to its common short form.
var shortNames = map[Region]string{
	"北京市": "北京", "天津市": "天津", "河北省": "河北", "山西省": "山西",
	"内蒙古自治区": "内蒙古", "辽宁省": "辽宁", "吉林省": "吉林",
	"黑龙江省": "黑龙江", "上海市": "上海", "江苏省": "江苏",
	"浙江省": "浙江", "安徽省": "安徽", "福建省": "福建", "江西省": "江西",
	"山东省": "山东", "河南省": "河南", "湖北省": "湖北", "湖南省": "湖南",
	"广东省": "广东", "广西壮族自治区": "广西", "海南省": "海南",
	"重庆市": "重庆", "四川省": "四川", "贵州省": "贵州", "云南省": "云南",
	"西藏自治区": "西藏", "陕西省": "陕西", "甘肃省": "甘肃",
	"青海省": "青海", "宁夏回族自治区": "宁夏", "新疆维吾尔自治区": "新疆",
}

// allRegionKeywords are inputs that select every region at once.
var allRegionKeywords = map[string]bool{
	"所有省份":  true,
	"全部省份":  true,
	"全国":    true,
	"31个省份": true,
	"所有":    true,
	"all":   true,
}

// Regions returns a copy of the full region enumeration in display order.
func Regions() []Region {
	out := make([]Region, len(regions))
	copy(out, regions)
	return out
}

// ParseRegion resolves a single name to a Region. Both the full label and the
// short form are accepted.
func ParseRegion(name string) (Region, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrNoRegion
	}
	for _, r := range regions {
		if string(r) == name || shortNames[r] == name {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRegion, name)
}

// ResolveRegions turns free user input into a de-duplicated region list.
// Names may be separated by ASCII or full-width commas, or passed as separate
// arguments. Any of the "all regions" keywords expands to the full enumeration.
// Every unknown name is reported in the returned error.
func ResolveRegions(inputs ...string) ([]Region, error) {
	var names []string
	for _, in := range inputs {
		in = strings.ReplaceAll(in, "，", ",")
		for _, part := range strings.Split(in, ",") {
			if part = strings.TrimSpace(part); part != "" {
				names = append(names, part)
			}
		}
	}
	if len(names) == 0 {
		return nil, ErrNoRegion
	}

	seen := make(map[Region]bool, len(names))
	out := make([]Region, 0, len(names))
	var unknown []string
	for _, name := range names {
		if allRegionKeywords[strings.ToLower(name)] {
			return Regions(), nil
		}
		r, err := ParseRegion(name)
		if err != nil {
			unknown = append(unknown, name)
			continue
		}
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRegion, strings.Join(unknown, ", "))
	}
	return out, nil
}
