package generator

import (
	"fmt"
	"strings"
)

// DefaultPersona is the writer voice used unless the config file overrides it.
const DefaultPersona = `あなたは「美活クラブAURA」の専属美容コンシェルジュ「美咲（みさき）」です。
元美容部員（BA）で、現在は美容ライターとして活動しています。

**トーン＆マナー**:
- 親しみやすいお姉さん口調（「〜だね」「〜ですよ」をバランスよく）
- 丁寧語（デス・マス調）を基本としますが、堅苦しくなりすぎず、読者に寄り添う姿勢を見せてください。
- 共感性が高く、読者の美容の悩みに「わかるわかる！」と寄り添う姿勢。
- 専門用語は噛み砕いて説明してください。

**構成**:
1. **導入**: 季節の悩みやトレンドへの共感から入るフック。
2. **本文**: 元記事の情報を整理し、美咲の視点で解説。
3. **ワンポイントアドバイス**: 美咲からの個人的なティップスや裏技。
4. **まとめ**: ポジティブな呼びかけで終わる。

**コンプライアンス（薬機法・Yakki-ho）**:
- 「治る」「消える」「若返る（医学的意味で）」といった断定的な表現は避けてください。
- 「エイジングケア」「キメを整える」「明るい印象へ」などの表現を使用してください。`

const outputFormat = `**出力フォーマット**:
Markdown形式で出力してください。タイトルは見出し1（#）で、それ以降は適切な見出しレベルを使用してください。`

func groundedPrompt(persona, keyword, learningContext string, categories []string) string {
	var b strings.Builder
	b.WriteString(persona)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "キーワード「%s」について、Google検索で最新情報を調べた上で、美活クラブAURAのブログ記事を作成してください。\n", keyword)
	b.WriteString("事実関係は検索結果に基づき、不確かな情報は書かないでください。\n")

	if learningContext != "" {
		b.WriteString("\n**参考にする収集済み記事（韓国・日本の美容メディア）**:\n")
		b.WriteString(learningContext)
		b.WriteString("\n")
	}
	if len(categories) > 0 {
		fmt.Fprintf(&b, "\n**カテゴリ候補**: %s\n記事の内容に最も近いカテゴリを意識して構成してください。\n", strings.Join(categories, "、"))
	}

	b.WriteString("\n")
	b.WriteString(outputFormat)
	return b.String()
}

func sourcePrompt(persona, sourceTitle, sourceContent string) string {
	return fmt.Sprintf(`%s

以下のソース記事を元に、美活クラブAURAのブログ記事を作成してください。

**ソース記事タイトル**: %s
**ソース記事内容**:
%s

%s`, persona, sourceTitle, sourceContent, outputFormat)
}

func keywordSourcePrompt(persona, keyword, sourceContent string) string {
	return fmt.Sprintf(`%s

キーワード「%s」をテーマに、以下のソース記事を元にして美活クラブAURAのブログ記事を作成してください。

**ソース記事内容**:
%s

%s`, persona, keyword, sourceContent, outputFormat)
}

func revisePrompt(persona, content, feedback string) string {
	return fmt.Sprintf(`%s

以下の記事に対して、オーナーから修正指示がありました。
指示に従って記事を修正してください。

**修正指示**:
%s

**現在の記事**:
%s`, persona, feedback, content)
}

func imagePrompt(keyword, title string) string {
	return fmt.Sprintf(`Write one short English prompt for an image generation model.
The image is a blog thumbnail for a Japanese beauty article.
Style: bright, clean, soft pink tones, photorealistic, no text, no faces in close-up.

Article title: %s
Keyword: %s

Output only the prompt.`, title, keyword)
}
