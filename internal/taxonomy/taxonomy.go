package taxonomy

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
)

// Category names, in the canonical order used across the engine.
const (
	CategoryEmotion               = "emotion"
	CategoryStoryFlow             = "story_flow"
	CategoryDirectionMood         = "direction_mood"
	CategoryCharacterRelationship = "character_relationship"
)

// Ending preference keys. Treated as independent affinities, not a distribution.
const (
	EndingHappy       = "happy"
	EndingOpen        = "open"
	EndingBittersweet = "bittersweet"
)

// TagsPerCategory is the fixed size of every category's tag list.
const TagsPerCategory = 20

// Categories returns the category names in canonical order.
func Categories() []string {
	return []string{
		CategoryEmotion,
		CategoryStoryFlow,
		CategoryDirectionMood,
		CategoryCharacterRelationship,
	}
}

// Endings returns the ending preference keys in canonical order.
func Endings() []string {
	return []string{EndingHappy, EndingOpen, EndingBittersweet}
}

// Taxonomy is the process-wide tag schema: four categories with an ordered
// list of exactly 20 tags each. It is loaded once at startup and never
// mutated afterwards; all TasteVector validation runs against one instance.
type Taxonomy struct {
	tags    map[string][]string
	members map[string]map[string]bool
}

// category is the on-disk shape of a single category entry.
type category struct {
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// Tags returns the ordered tag list for the given category.
// Returns nil for unknown categories.
func (t *Taxonomy) Tags(cat string) []string {
	return t.tags[cat]
}

// Contains reports whether tag belongs to the given category.
func (t *Taxonomy) Contains(cat, tag string) bool {
	return t.members[cat][tag]
}

// CategoryOf returns the category a tag belongs to, or "" if the tag is not
// part of the taxonomy. Tags are unique across categories.
func (t *Taxonomy) CategoryOf(tag string) string {
	for _, cat := range Categories() {
		if t.members[cat][tag] {
			return cat
		}
	}
	return ""
}

// New builds a taxonomy from a category→tags mapping.
// Every canonical category must be present with exactly TagsPerCategory tags.
func New(tags map[string][]string) (*Taxonomy, error) {
	t := &Taxonomy{
		tags:    make(map[string][]string, len(tags)),
		members: make(map[string]map[string]bool, len(tags)),
	}
	for _, cat := range Categories() {
		list, ok := tags[cat]
		if !ok {
			return nil, fmt.Errorf("taxonomy: missing category %q", cat)
		}
		if len(list) != TagsPerCategory {
			return nil, fmt.Errorf("taxonomy: category %q has %d tags, want %d", cat, len(list), TagsPerCategory)
		}
		members := make(map[string]bool, len(list))
		for _, tag := range list {
			if members[tag] {
				return nil, fmt.Errorf("taxonomy: duplicate tag %q in category %q", tag, cat)
			}
			members[tag] = true
		}
		t.tags[cat] = append([]string(nil), list...)
		t.members[cat] = members
	}
	return t, nil
}

// Load reads a taxonomy from a JSON file in the
// {"category": {"description": ..., "tags": [...]}} format.
// On any failure the built-in default is returned instead, so the engine
// always starts with a usable schema.
func Load(path string) *Taxonomy {
	if path == "" {
		return Default()
	}

	content, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("Unable to read taxonomy file, using default", "path", path, "error", err)
		return Default()
	}

	var raw map[string]category
	if err := json.Unmarshal(content, &raw); err != nil {
		slog.Warn("Unable to parse taxonomy file, using default", "path", path, "error", err)
		return Default()
	}

	tags := make(map[string][]string, len(raw))
	for cat, entry := range raw {
		tags[cat] = entry.Tags
	}

	t, err := New(tags)
	if err != nil {
		slog.Warn("Invalid taxonomy file, using default", "path", path, "error", err)
		return Default()
	}
	return t
}

// Default returns the built-in taxonomy.
func Default() *Taxonomy {
	t, err := New(defaultTags())
	if err != nil {
		// The built-in table is fixed at compile time.
		panic("taxonomy: invalid default: " + err.Error())
	}
	return t
}

func defaultTags() map[string][]string {
	return map[string][]string{
		CategoryEmotion: {
			"감동적이에요", "따뜻해요", "힐링돼요", "슬퍼요", "여운이 길어요",
			"희망적이에요", "우울해요", "긴장돼요", "무서워요", "소름 돋아요",
			"설레요", "로맨틱해요", "통쾌해요", "웃겨요", "밝은 분위기예요",
			"어두운 분위기예요", "잔잔해요", "감정 기복이 커요", "현실적이에요", "몽환적이에요",
		},
		CategoryStoryFlow: {
			"전개가 빨라요", "전개가 느긋해요", "초반부터 몰입돼요", "후반부가 강해요",
			"반전이 많아요", "반전이 한 번 크게 있어요", "복선이 많아요", "이해하기 쉬워요",
			"생각하면서 봐야 해요", "결말이 인상적이에요", "열린 결말이에요", "기승전결이 뚜렷해요",
			"일상적인 이야기예요", "사건이 계속 이어져요", "에피소드형 구성이에요", "점점 고조돼요",
			"중반이 지루하지 않아요", "전개가 예측 가능해요", "전개가 예측 불가능해요", "스토리가 단순해요",
		},
		CategoryDirectionMood: {
			"영상미가 좋아요", "색감이 예뻐요", "화면이 어두운 편이에요", "화면이 밝은 편이에요",
			"음악이 인상적이에요", "분위기 연출이 좋아요", "감각적인 연출이에요", "현실감 있는 연출이에요",
			"스타일이 독특해요", "잔잔한 연출이에요", "몰입감 있는 연출이에요", "연출이 과하지 않아요",
			"연출이 화려해요", "카메라 움직임이 인상적이에요", "배경이 매력적이에요", "공간 연출이 좋아요",
			"전체 분위기가 차분해요", "전체 분위기가 강렬해요", "미장센이 좋아요", "예술적인 느낌이에요",
		},
		CategoryCharacterRelationship: {
			"주인공이 매력적이에요", "조연 캐릭터가 좋아요", "캐릭터 성장이 잘 보여요", "캐릭터에 공감돼요",
			"인물 간 관계가 중요해요", "가족 관계 이야기예요", "친구 관계 이야기예요", "연인 관계 이야기예요",
			"팀플레이가 중심이에요", "갈등 관계가 흥미로워요", "악역이 인상적이에요", "인물이 입체적이에요",
			"인물이 현실적이에요", "인물이 독특해요", "대사가 좋아요", "감정 표현이 풍부해요",
			"인물 중심 전개예요", "여러 인물이 골고루 비중이 있어요", "한 인물 중심 이야기예요", "관계 변화가 잘 느껴져요",
		},
	}
}
