package analysis

import (
	"regexp"
	"strings"
)

// Keyword tables for rule-based negation detection. Partial matches are
// intentional: "무서" catches "무서운", "무서워서", "무서우니까" and so on.
var (
	negationKeywords = []string{
		"싫어", "제외", "말고", "빼고", "아니", "안", "싫다",
		"NO", "싫고", "제거", "거부", "없이",
	}

	positiveKeywords = []string{
		"좋아", "추천", "원해", "보고 싶", "찾아", "선호",
	}

	// keyword fragment → taxonomy tag. Kept as an ordered list so matched
	// tags always come out in the same order; that order is the insertion
	// order of the bounded tag sets downstream.
	tagKeywords = []tagKeyword{
		{"무서", "무서워요"},
		{"긴장", "긴장돼요"},
		{"우울", "우울해요"},
		{"웃", "웃겨요"},
		{"밝", "밝은 분위기예요"},
		{"어둡", "어두운 분위기예요"},
		{"슬", "슬퍼요"},
		{"감동", "감동적이에요"},
		{"따뜻", "따뜻해요"},
		{"힐링", "힐링돼요"},
		{"여운", "여운이 길어요"},
		{"희망", "희망적이에요"},
		{"설레", "설레요"},
		{"로맨", "로맨틱해요"},
		{"통쾌", "통쾌해요"},
		{"잔잔", "잔잔해요"},
		{"현실", "현실적이에요"},
		{"몽환", "몽환적이에요"},
		{"소름", "소름 돋아요"},
	}

	// excluded tag → genre to filter out alongside it
	tagGenres = map[string]string{
		"무서워요":  "공포",
		"소름 돋아요": "공포",
		"긴장돼요":  "스릴러",
		"로맨틱해요": "로맨스",
		"설레요":   "로맨스",
		"웃겨요":   "코미디",
	}

	connectiveRe = regexp.MustCompile(`하?거나`)
	sentenceRe   = regexp.MustCompile(`[.!?;]`)
)

type tagKeyword struct {
	keyword string
	tag     string
}

// negationResult splits keyword-matched tags into tags the text rules out
// and tags it asks for.
type negationResult struct {
	excludeTags []string
	includeTags []string
}

// detectNegation scans text for taxonomy tag keywords appearing in negated
// or affirming context. Sentences with both kinds of marker are resolved by
// position: the tags on the negation side of the sentence are excluded, the
// rest included. Conflicts resolve toward exclusion.
func detectNegation(text string) negationResult {
	// "무섭거나 잔잔한" → "무섭, 잔잔한" so both fragments match per-sentence.
	text = connectiveRe.ReplaceAllString(text, ",")

	var exclude, include []string
	for _, sentence := range sentenceRe.Split(text, -1) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}

		negIdx := firstKeywordIndex(sentence, negationKeywords)
		posIdx := firstKeywordIndex(sentence, positiveKeywords)

		for _, kw := range tagKeywords {
			tag := kw.tag
			tagIdx := strings.Index(sentence, kw.keyword)
			if tagIdx < 0 {
				continue
			}
			switch {
			case negIdx >= 0 && posIdx < 0:
				exclude = append(exclude, tag)
			case posIdx >= 0 && negIdx < 0:
				include = append(include, tag)
			case negIdx >= 0 && posIdx >= 0:
				// Markers are postpositional: a tag belongs to the first
				// marker after it. "무서운 건 말고 따뜻한 영화 추천해줘"
				// excludes 무서 and includes 따뜻.
				if negIdx < posIdx {
					if tagIdx < negIdx {
						exclude = append(exclude, tag)
					} else {
						include = append(include, tag)
					}
				} else {
					if tagIdx >= negIdx || tagIdx >= posIdx {
						exclude = append(exclude, tag)
					} else {
						include = append(include, tag)
					}
				}
			}
		}
	}

	exclude = dedup(exclude)
	seen := make(map[string]bool, len(exclude))
	for _, tag := range exclude {
		seen[tag] = true
	}
	kept := make([]string, 0, len(include))
	for _, tag := range dedup(include) {
		if !seen[tag] {
			kept = append(kept, tag)
		}
	}

	return negationResult{excludeTags: exclude, includeTags: kept}
}

// excludedGenres maps excluded tags to the genres to filter out with them.
func excludedGenres(excludeTags []string) []string {
	var genres []string
	for _, tag := range excludeTags {
		if genre, ok := tagGenres[tag]; ok {
			genres = append(genres, genre)
		}
	}
	return dedup(genres)
}

func firstKeywordIndex(sentence string, keywords []string) int {
	first := -1
	for _, kw := range keywords {
		if idx := strings.Index(sentence, kw); idx >= 0 && (first < 0 || idx < first) {
			first = idx
		}
	}
	return first
}

func dedup(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
