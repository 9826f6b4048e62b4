package filter

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name         string
		keywords     []string
		spamKeywords []string
		text         string
		wantAccept   bool
		wantReason   string
	}{
		{
			name:       "empty text rejected",
			text:       "",
			wantReason: "empty text",
		},
		{
			name:         "spam keyword rejected",
			spamKeywords: []string{"казино"},
			text:         "Лучшее КАЗИНО города ждет вас",
			wantReason:   "spam keyword: казино",
		},
		{
			name:       "no keyword filter accepts everything",
			text:       "Обычная новость без ключевых слов",
			wantAccept: true,
			wantReason: "no keyword filter",
		},
		{
			name:       "keyword match accepts",
			keywords:   []string{"транспорт", "дороги"},
			text:       "Новый транспорт выходит на маршруты",
			wantAccept: true,
			wantReason: "keyword match: транспорт",
		},
		{
			name:       "no keyword match rejected",
			keywords:   []string{"транспорт"},
			text:       "Погода сегодня солнечная",
			wantReason: "no keyword match",
		},
		{
			name:       "only promo content rejected",
			text:       "Подписаться на канал: t.me/example",
			wantReason: "empty after cleaning",
		},
		{
			name:         "spam checked before keywords",
			keywords:     []string{"транспорт"},
			spamKeywords: []string{"реклама"},
			text:         "Реклама: транспорт со скидкой",
			wantReason:   "spam keyword: реклама",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(tt.keywords, tt.spamKeywords)
			got := f.Evaluate(tt.text)
			if got.Accept != tt.wantAccept {
				t.Errorf("Accept = %v, want %v (reason %q)", got.Accept, tt.wantAccept, got.Reason)
			}
			if got.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", got.Reason, tt.wantReason)
			}
			if got.Accept && got.Cleaned == "" {
				t.Error("accepted verdict has empty cleaned text")
			}
		})
	}
}

func TestEvaluateReasonListsAtMostThreeKeywords(t *testing.T) {
	f := New([]string{"a1", "b2", "c3", "d4", "e5"}, nil)
	got := f.Evaluate("a1 b2 c3 d4 e5")
	if !got.Accept {
		t.Fatalf("expected accept, got %+v", got)
	}
	if n := strings.Count(got.Reason, ","); n != 2 {
		t.Errorf("reason %q lists %d separators, want 2", got.Reason, n)
	}
}

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "drops promo lines",
			text: "Важная новость\nПодписаться: t.me/channel\nПродолжение новости",
			want: "Важная новость\nПродолжение новости",
		},
		{
			name: "drops channel signature",
			text: "Текст\nКанал: Городские новости",
			want: "Текст",
		},
		{
			name: "collapses blank line runs",
			text: "Первый абзац\n\n\n\n\nВторой абзац",
			want: "Первый абзац\n\nВторой абзац",
		},
		{
			name: "trims surrounding whitespace",
			text: "\n\n  Текст  \n\n",
			want: "Текст",
		},
		{
			name: "promo-only text becomes empty",
			text: "Подпишись!\nt.me/spam",
			want: "",
		},
	}

	f := New(nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := f.Clean(tt.text)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Clean mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIsSpam(t *testing.T) {
	f := New(nil, []string{"казино", "ставки"})

	if !f.IsSpam("Делайте СТАВКИ сегодня") {
		t.Error("spam keyword not detected case-insensitively")
	}
	if f.IsSpam("Обычная новость") {
		t.Error("clean text flagged as spam")
	}
	if f.IsSpam("") {
		t.Error("empty text flagged as spam")
	}
}
