package resolver

import (
	"regexp"
	"strings"

	"knx-resolve/internal/domain"
)

// KNX ID 片段提取（各规则相互独立，缺失只留空，不报错）
var (
	manufacturerRe = regexp.MustCompile(`^(M-[0-9A-Fa-f]{4})`)
	orderRefRe     = regexp.MustCompile(`-O([0-9A-Fa-f]{4,})`)
	programRe      = regexp.MustCompile(`_[PA]-([0-9A-Fa-f.]+)`)
	longDigitsRe   = regexp.MustCompile(`\d{4,}`)
	orderLikeRe    = regexp.MustCompile(`(?i)[A-Z]{2,}[-.]?\d{3,}`)
)

// hardware id 在下一个程序/订货段开始处截断
var hardwareTerminators = []string{"_P-", "_A-", "_O"}

// ParseKNXID 将原始 KNX 标识解析为结构化片段
// 纯函数：确定性、永不失败；searchTerms 按特异度从高到低排列并去重。
// 短于 3 个字符的 term 由 lookup 层过滤，这里不做。
func ParseKNXID(raw string) domain.ParsedSegments {
	segments := domain.ParsedSegments{
		Raw:         raw,
		SearchTerms: []string{},
	}

	// M-XXXX
	if m := manufacturerRe.FindStringSubmatch(raw); m != nil {
		segments.ManufacturerID = m[1]
		segments.ManufacturerHex = strings.ToUpper(strings.TrimPrefix(m[1], "M-"))
	}

	// _H-... （硬件标识）
	if idx := strings.Index(raw, "_H-"); idx >= 0 {
		hw := raw[idx+len("_H-"):]
		cut := len(hw)
		for _, term := range hardwareTerminators {
			if i := strings.Index(hw, term); i >= 0 && i < cut {
				cut = i
			}
		}
		segments.HardwareID = hw[:cut]
	}

	// -O + hex（订货引用）
	if m := orderRefRe.FindStringSubmatch(raw); m != nil {
		segments.OrderRef = m[1]
	}

	// _P-XXXX.XXXX / _A-XXXX.XXXX（应用程序标识）
	if m := programRe.FindStringSubmatch(raw); m != nil {
		segments.ProgramID = m[1]
		parts := strings.Split(m[1], ".")
		segments.ProgramNumber = parts[0]
		if len(parts) >= 2 {
			segments.ProgramVersion = strings.Join(parts[1:], ".")
		}
	}

	seen := map[string]bool{}
	addTerm := func(term string) {
		if term == "" || seen[term] {
			return
		}
		seen[term] = true
		segments.SearchTerms = append(segments.SearchTerms, term)
	}

	// 1. 程序号——很多厂商的程序号就是订货号，再补 "XXXX 00" 变体
	if segments.ProgramNumber != "" {
		addTerm(segments.ProgramNumber)
		addTerm(segments.ProgramNumber + " 00")
	}

	// 2. 硬件标识中的长数字串
	if segments.HardwareID != "" {
		for _, num := range longDigitsRe.FindAllString(segments.HardwareID, -1) {
			addTerm(num)
		}
		// 3. 订货号样式的字母数字串
		for _, p := range orderLikeRe.FindAllString(segments.HardwareID, -1) {
			addTerm(p)
		}
	}

	// 4. 订货引用
	if segments.OrderRef != "" {
		addTerm(segments.OrderRef)
	}

	return segments
}
