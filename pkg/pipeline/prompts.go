package pipeline

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// buildBatchPrompt 把一批任务合并成编号列表提示词。
// 要求模型按相同编号逐行返回，便于按位置拆分结果。
func buildBatchPrompt(tasks []Task, targetLang string) string {
	var builder strings.Builder

	fmt.Fprintf(&builder, `Translate the following numbered items into %s.

Rules:
- Reply with one line per item, keeping the same number followed by a period.
- Do not merge, split, or reorder items.
- Output the translation only, no explanations.

`, targetLang)

	for i, task := range tasks {
		fmt.Fprintf(&builder, "%d. %s\n", i+1, task.SourceText)
	}
	return builder.String()
}

// buildTranslatePrompt 构建单篇全文翻译提示词
func buildTranslatePrompt(text, targetLang string) string {
	return fmt.Sprintf(`Translate the following text into %s. Preserve the original paragraph structure. Output the translation only.

%s`, targetLang, text)
}

// buildSummaryPrompt 构建摘要提示词
func buildSummaryPrompt(text, targetLang string) string {
	return fmt.Sprintf(`Summarize the following article in %s, in no more than three sentences. Output the summary only.

%s`, targetLang, text)
}

// numberedLine 匹配 "N. 文本" 形式的响应行，兼容常见的编号分隔符
var numberedLine = regexp.MustCompile(`^\s*(\d+)\s*[.、．:：]\s*(.*)$`)

// parseNumberedResponse 把批量响应解析成 编号->文本 的映射。
// 按编号匹配而不是按内容匹配；无法解析的行被跳过。
func parseNumberedResponse(response string) map[int]string {
	outputs := make(map[int]string)

	for _, line := range strings.Split(response, "\n") {
		match := numberedLine.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		index, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		text := strings.TrimSpace(match[2])
		if text == "" {
			continue
		}
		// 重复编号以先出现的为准
		if _, exists := outputs[index]; !exists {
			outputs[index] = text
		}
	}
	return outputs
}
