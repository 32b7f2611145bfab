package report

import (
	"strings"

	"DrawdownSentinel/internal/model"
)

// Language selects a message catalog.
type Language string

const (
	English Language = "en"
	Hebrew  Language = "he"
	Russian Language = "ru"
)

// ParseLanguage maps a tag such as "he-IL" to a supported language, defaulting to English.
func ParseLanguage(tag string) Language {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if i := strings.IndexAny(tag, "-_"); i > 0 {
		tag = tag[:i]
	}
	switch Language(tag) {
	case Hebrew:
		return Hebrew
	case Russian:
		return Russian
	default:
		return English
	}
}

// catalog holds the templates of one language. Recommendation templates use explicit
// argument indexes:
//
//	[1] drawdown %  [2] transfer amount  [3] cash %  [4] target %
//	[5] cash contribution  [6] stocks contribution  [7] tranche index
type catalog struct {
	recommendation map[model.RecommendationType]string
	title          map[model.RecommendationType]string
	status         map[model.MarketStatus]string
	defaultTitle   string
}

var catalogs = map[Language]catalog{
	English: {
		recommendation: map[model.RecommendationType]string{
			model.RecStopCashOverMax: "Cash allocation (%.1[3]f%%) exceeds the %[4]g%% maximum. Stop contributing to cash - direct all contributions to stocks.",
			model.RecFireAmmo3:       "CRASH ALERT! Market down %.1[1]f%%. Deploy tranche %[7]d: move %[2]s (a third of cash) to stocks.",
			model.RecFireAmmo2:       "BEAR MARKET! Market down %.1[1]f%%. Deploy tranche %[7]d: move %[2]s (a third of cash) to stocks.",
			model.RecFireAmmo1:       "CORRECTION! Market down %.1[1]f%%. Deploy tranche %[7]d: move %[2]s (a third of cash) to stocks.",
			model.RecRebuildAmmo:     "Market recovered (drawdown %.1[1]f%%). Rebuild cash reserves to %[4]g%%. Transfer %[2]s from stocks to cash.",
			model.RecNormal:          "Market normal (drawdown %.1[1]f%%). Split contribution: %[5]s to cash, %[6]s to stocks.",
		},
		title: map[model.RecommendationType]string{
			model.RecFireAmmo1:       "Tranche deployment recommended",
			model.RecFireAmmo2:       "Tranche deployment recommended",
			model.RecFireAmmo3:       "Tranche deployment recommended",
			model.RecStopCashOverMax: "Cash allocation alert",
			model.RecRebuildAmmo:     "Ammo rebuild recommended",
		},
		status: map[model.MarketStatus]string{
			model.StatusNormal:     "Normal",
			model.StatusCorrection: "Correction",
			model.StatusBear:       "Bear Market",
			model.StatusCrash:      "Crash",
		},
		defaultTitle: "Strategy update",
	},
	Hebrew: {
		recommendation: map[model.RecommendationType]string{
			model.RecStopCashOverMax: "הקצאת המזומן (%.1[3]f%%) חורגת מהמקסימום של %[4]g%%. הפסק להפקיד למזומן - הפנה את כל ההפקדות למניות.",
			model.RecFireAmmo3:       "התראת קריסה! השוק ירד %.1[1]f%%. הפעל מנה %[7]d: העבר %[2]s (שליש מהמזומן) למניות.",
			model.RecFireAmmo2:       "שוק דובי! השוק ירד %.1[1]f%%. הפעל מנה %[7]d: העבר %[2]s (שליש מהמזומן) למניות.",
			model.RecFireAmmo1:       "תיקון! השוק ירד %.1[1]f%%. הפעל מנה %[7]d: העבר %[2]s (שליש מהמזומן) למניות.",
			model.RecRebuildAmmo:     "השוק התאושש (ירידה של %.1[1]f%%). בנה מחדש את רזרבת המזומן ל-%[4]g%%. העבר %[2]s ממניות למזומן.",
			model.RecNormal:          "שוק רגיל (ירידה של %.1[1]f%%). חלוקת ההפקדה: %[5]s למזומן, %[6]s למניות.",
		},
		title: map[model.RecommendationType]string{
			model.RecFireAmmo1:       "מומלץ להפעיל מנה",
			model.RecFireAmmo2:       "מומלץ להפעיל מנה",
			model.RecFireAmmo3:       "מומלץ להפעיל מנה",
			model.RecStopCashOverMax: "התראת הקצאת מזומן",
			model.RecRebuildAmmo:     "מומלץ לבנות מחדש תחמושת",
		},
		status: map[model.MarketStatus]string{
			model.StatusNormal:     "רגיל",
			model.StatusCorrection: "תיקון",
			model.StatusBear:       "שוק דובי",
			model.StatusCrash:      "קריסה",
		},
		defaultTitle: "עדכון אסטרטגיה",
	},
	Russian: {
		recommendation: map[model.RecommendationType]string{
			model.RecStopCashOverMax: "Доля наличных (%.1[3]f%%) превышает максимум %[4]g%%. Прекратите пополнять наличные - направляйте все взносы в акции.",
			model.RecFireAmmo3:       "ОБВАЛ! Рынок упал на %.1[1]f%%. Задействуйте транш %[7]d: переведите %[2]s (треть наличных) в акции.",
			model.RecFireAmmo2:       "МЕДВЕЖИЙ РЫНОК! Рынок упал на %.1[1]f%%. Задействуйте транш %[7]d: переведите %[2]s (треть наличных) в акции.",
			model.RecFireAmmo1:       "КОРРЕКЦИЯ! Рынок упал на %.1[1]f%%. Задействуйте транш %[7]d: переведите %[2]s (треть наличных) в акции.",
			model.RecRebuildAmmo:     "Рынок восстановился (просадка %.1[1]f%%). Восстановите резерв наличных до %[4]g%%. Переведите %[2]s из акций в наличные.",
			model.RecNormal:          "Рынок в норме (просадка %.1[1]f%%). Распределение взноса: %[5]s в наличные, %[6]s в акции.",
		},
		title: map[model.RecommendationType]string{
			model.RecFireAmmo1:       "Рекомендовано задействовать транш",
			model.RecFireAmmo2:       "Рекомендовано задействовать транш",
			model.RecFireAmmo3:       "Рекомендовано задействовать транш",
			model.RecStopCashOverMax: "Предупреждение о доле наличных",
			model.RecRebuildAmmo:     "Рекомендовано восстановить резерв",
		},
		status: map[model.MarketStatus]string{
			model.StatusNormal:     "Нормальный",
			model.StatusCorrection: "Коррекция",
			model.StatusBear:       "Медвежий рынок",
			model.StatusCrash:      "Обвал",
		},
		defaultTitle: "Обновление стратегии",
	},
}

func catalogFor(lang Language) catalog {
	if c, ok := catalogs[lang]; ok {
		return c
	}
	return catalogs[English]
}
