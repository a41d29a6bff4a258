package core

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
	"sync"
	"unicode"
)

// 非单词字符 (字母/数字/下划线以外) 统一替换为空格
var nonWordRE = regexp.MustCompile(`\W+`)

// PathOrganizer 把页面URL映射为输出目录下的Markdown文件路径
// URL路径段逐段清洗: 非单词字符转空格, 压缩空白, 标题化, 空格转下划线;
// 最后一段作为文件名, 其余段作为目录层级
type PathOrganizer struct {
	mu sync.Mutex

	// claims 目录 -> 文件名 -> 占用该文件名的URL
	claims map[string]map[string]string

	// resolved URL -> 已分配的相对路径, 保证同一URL重复组织结果一致
	resolved map[string]string
}

// NewPathOrganizer 创建路径组织器
func NewPathOrganizer() *PathOrganizer {
	return &PathOrganizer{
		claims:   make(map[string]map[string]string),
		resolved: make(map[string]string),
	}
}

// Organize 为页面URL分配相对文件路径
// 同一URL多次调用返回相同路径; 不同URL清洗后撞名时追加 _1, _2 后缀
func (po *PathOrganizer) Organize(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("解析URL失败: %w", err)
	}

	po.mu.Lock()
	defer po.mu.Unlock()

	if relPath, ok := po.resolved[rawURL]; ok {
		return relPath, nil
	}

	dir, name := splitCleanPath(parsed.Path)

	if po.claims[dir] == nil {
		po.claims[dir] = make(map[string]string)
	}

	filename := name + ".md"
	for i := 1; ; i++ {
		if _, taken := po.claims[dir][filename]; !taken {
			break
		}
		filename = fmt.Sprintf("%s_%d.md", name, i)
	}

	po.claims[dir][filename] = rawURL
	relPath := path.Join(dir, filename)
	po.resolved[rawURL] = relPath
	return relPath, nil
}

// splitCleanPath 把URL路径拆为清洗后的目录和文件名(不含扩展名)
// 空路径或清洗后为空的末段回退为index
func splitCleanPath(urlPath string) (dir string, name string) {
	trimmed := strings.Trim(urlPath, "/")
	if trimmed == "" {
		return "", "index"
	}

	segments := strings.Split(trimmed, "/")
	cleaned := make([]string, 0, len(segments))
	for _, seg := range segments {
		if c := cleanSegment(seg); c != "" {
			cleaned = append(cleaned, c)
		}
	}

	if len(cleaned) == 0 {
		return "", "index"
	}

	name = cleaned[len(cleaned)-1]
	dir = path.Join(cleaned[:len(cleaned)-1]...)
	return dir, name
}

// cleanSegment 清洗单个路径段
// "getting-started" -> "Getting_Started", "a_b" -> "A_B"
func cleanSegment(seg string) string {
	if decoded, err := url.PathUnescape(seg); err == nil {
		seg = decoded
	}

	s := nonWordRE.ReplaceAllString(seg, " ")
	s = strings.Join(strings.Fields(s), " ")
	s = titleCase(s)
	return strings.ReplaceAll(s, " ", "_")
}

// titleCase 紧跟在非字母后的字母转大写, 其余字母转小写
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
		} else {
			b.WriteRune(r)
			prevLetter = false
		}
	}
	return b.String()
}
