package model

import "strings"

// Region is the canonical English name of a provincial-level region
type Region string

const (
	RegionBeijing       Region = "Beijing"
	RegionTianjin       Region = "Tianjin"
	RegionHebei         Region = "Hebei"
	RegionShanxi        Region = "Shanxi"
	RegionInnerMongolia Region = "Inner Mongolia"
	RegionLiaoning      Region = "Liaoning"
	RegionJilin         Region = "Jilin"
	RegionHeilongjiang  Region = "Heilongjiang"
	RegionShanghai      Region = "Shanghai"
	RegionJiangsu       Region = "Jiangsu"
	RegionZhejiang      Region = "Zhejiang"
	RegionAnhui         Region = "Anhui"
	RegionFujian        Region = "Fujian"
	RegionJiangxi       Region = "Jiangxi"
	RegionShandong      Region = "Shandong"
	RegionHenan         Region = "Henan"
	RegionHubei         Region = "Hubei"
	RegionHunan         Region = "Hunan"
	RegionGuangdong     Region = "Guangdong"
	RegionGuangxi       Region = "Guangxi"
	RegionHainan        Region = "Hainan"
	RegionChongqing     Region = "Chongqing"
	RegionSichuan       Region = "Sichuan"
	RegionGuizhou       Region = "Guizhou"
	RegionYunnan        Region = "Yunnan"
	RegionTibet         Region = "Tibet"
	RegionShaanxi       Region = "Shaanxi"
	RegionGansu         Region = "Gansu"
	RegionQinghai       Region = "Qinghai"
	RegionNingxia       Region = "Ningxia"
	RegionXinjiang      Region = "Xinjiang"
)

// RegionInfo describes one entry of the static region table
type RegionInfo struct {
	Region  Region
	Chinese string
	Aliases []string
}

var regionTable = []RegionInfo{
	{Region: RegionBeijing, Chinese: "北京", Aliases: []string{"Peking"}},
	{Region: RegionTianjin, Chinese: "天津"},
	{Region: RegionHebei, Chinese: "河北"},
	{Region: RegionShanxi, Chinese: "山西"},
	{Region: RegionInnerMongolia, Chinese: "内蒙古", Aliases: []string{"Nei Mongol", "Neimenggu", "Nei Menggu"}},
	{Region: RegionLiaoning, Chinese: "辽宁"},
	{Region: RegionJilin, Chinese: "吉林"},
	{Region: RegionHeilongjiang, Chinese: "黑龙江"},
	{Region: RegionShanghai, Chinese: "上海"},
	{Region: RegionJiangsu, Chinese: "江苏"},
	{Region: RegionZhejiang, Chinese: "浙江"},
	{Region: RegionAnhui, Chinese: "安徽"},
	{Region: RegionFujian, Chinese: "福建"},
	{Region: RegionJiangxi, Chinese: "江西"},
	{Region: RegionShandong, Chinese: "山东"},
	{Region: RegionHenan, Chinese: "河南"},
	{Region: RegionHubei, Chinese: "湖北"},
	{Region: RegionHunan, Chinese: "湖南"},
	{Region: RegionGuangdong, Chinese: "广东"},
	{Region: RegionGuangxi, Chinese: "广西", Aliases: []string{"Guangxi Zhuang"}},
	{Region: RegionHainan, Chinese: "海南"},
	{Region: RegionChongqing, Chinese: "重庆", Aliases: []string{"Chungking"}},
	{Region: RegionSichuan, Chinese: "四川", Aliases: []string{"Szechuan", "Szechwan"}},
	{Region: RegionGuizhou, Chinese: "贵州"},
	{Region: RegionYunnan, Chinese: "云南"},
	{Region: RegionTibet, Chinese: "西藏", Aliases: []string{"Xizang"}},
	{Region: RegionShaanxi, Chinese: "陕西"},
	{Region: RegionGansu, Chinese: "甘肃"},
	{Region: RegionQinghai, Chinese: "青海"},
	{Region: RegionNingxia, Chinese: "宁夏"},
	{Region: RegionXinjiang, Chinese: "新疆"},
}

// AmbiguousRegionAliases maps lower-case tokens that look like region names
// but cannot be resolved to exactly one region.
var AmbiguousRegionAliases = map[string]string{
	"mongolia": "could be the country Mongolia or Inner Mongolia",
	"canton":   "could be the city Guangzhou or the province Guangdong",
	"shansi":   "could be Shanxi or Shaanxi",
}

var regionIndex = func() map[Region]int {
	index := make(map[Region]int, len(regionTable))
	for i, info := range regionTable {
		index[info.Region] = i
	}
	return index
}()

// RegionTable returns a copy of the static region table in canonical order
func RegionTable() []RegionInfo {
	table := make([]RegionInfo, len(regionTable))
	copy(table, regionTable)
	return table
}

// Regions returns all known regions in canonical order
func Regions() []Region {
	regions := make([]Region, len(regionTable))
	for i, info := range regionTable {
		regions[i] = info.Region
	}
	return regions
}

// IsKnown reports whether r is part of the region table
func (r Region) IsKnown() bool {
	_, ok := regionIndex[r]
	return ok
}

// Order returns the canonical position of the region, unknown regions sort last
func (r Region) Order() int {
	if i, ok := regionIndex[r]; ok {
		return i
	}
	return len(regionTable)
}

// ParseRegion resolves a canonical name, Chinese name or alias (case-insensitive for Latin names)
func ParseRegion(name string) (Region, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	for _, info := range regionTable {
		if strings.EqualFold(string(info.Region), name) || info.Chinese == name {
			return info.Region, true
		}
		for _, alias := range info.Aliases {
			if strings.EqualFold(alias, name) {
				return info.Region, true
			}
		}
	}
	return "", false
}

// LessRegion orders regions canonically, unknown regions alphabetically after known ones
func LessRegion(a, b Region) bool {
	oa, ob := a.Order(), b.Order()
	if oa != ob {
		return oa < ob
	}
	return a < b
}
