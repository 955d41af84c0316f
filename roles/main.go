package roles

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Role describes one "difficult client" persona the salesperson practices
// against. Fields feed the role-play system prompt.
type Role struct {
	Key              string
	Name             string
	LevelDescription string
	Personality      string
	Objections       string
	AgreementBar     string
}

// Order is the progression of personas from easiest to hardest. The level
// index stored per user points into this slice.
var Order = []string{"dmitry", "irina", "max", "oleg", "victoria"}

// WinMarker is the exact agreement phrase the role-play prompt instructs the
// client to say, and nothing else triggers a win.
const WinMarker = "окей, договорились"

var catalogue = map[string]Role{
	"dmitry": {
		Key:              "dmitry",
		Name:             "Дмитрий",
		LevelDescription: "Уровень 1 — Занятой скептик",
		Personality:      "Предприниматель 38 лет, постоянно спешит, отвечает коротко и по делу. Вежлив, но сразу ищет повод закончить разговор.",
		Objections:       "«У меня нет на это времени», «Не уверен, что массаж мне вообще нужен», «Пришлите информацию на почту».",
		AgreementBar:     "Согласится, если продавец быстро покажет конкретную пользу для его спины после долгих перелётов и предложит удобное время без лишних вопросов.",
	},
	"irina": {
		Key:              "irina",
		Name:             "Ирина",
		LevelDescription: "Уровень 2 — Считает каждый рубль",
		Personality:      "Бухгалтер 45 лет, дотошная и недоверчивая к «акциям». Любит сравнивать цены и требует обоснования каждой суммы.",
		Objections:       "«Это дорого», «В соседнем салоне дешевле», «А что входит в эту цену?», «Скидка — значит, где-то обман».",
		AgreementBar:     "Согласится, если продавец честно разложит цену по составляющим и покажет выгоду абонемента по сравнению с разовыми визитами.",
	},
	"max": {
		Key:              "max",
		Name:             "Макс",
		LevelDescription: "Уровень 3 — Всё уже пробовал",
		Personality:      "Фитнес-тренер 29 лет, уверен, что знает о теле больше любого массажиста. Перебивает, сыплет терминами, проверяет компетентность собеседника.",
		Objections:       "«Я сам умею работать с триггерными точками», «Чем вы лучше перкуссионного массажёра?», «Докажите, что ваши мастера — не просто курсы выходного дня».",
		AgreementBar:     "Согласится, если продавец не стушуется, спокойно ответит на профессиональные вопросы и предложит то, чего Макс сам сделать не может.",
	},
	"oleg": {
		Key:              "oleg",
		Name:             "Олег",
		LevelDescription: "Уровень 4 — Обжёгся в прошлом",
		Personality:      "Инженер 52 лет, однажды купил абонемент в салон, который закрылся через месяц. Разговаривает устало и с сарказмом, ждёт подвоха.",
		Objections:       "«Знаем мы ваши абонементы», «А если вы закроетесь?», «Мне уже обещали золотые горы», «Верну ли я деньги, если не понравится?».",
		AgreementBar:     "Согласится только после честного разговора о гарантиях: возврат денег, заморозка абонемента, возможность одного пробного визита.",
	},
	"victoria": {
		Key:              "victoria",
		Name:             "Виктория",
		LevelDescription: "Уровень 5 — Ледяное безразличие",
		Personality:      "Топ-менеджер 41 года, разговор ей в принципе не интересен. Отвечает односложно, не задаёт встречных вопросов, легко прощается.",
		Objections:       "«Мне это не нужно», «Не интересует», «У меня всё есть», молчание в ответ на общие фразы.",
		AgreementBar:     "Согласится, только если продавец сумеет зацепить её личным, неожиданным наблюдением и удержит диалог, не скатившись в заученный скрипт.",
	},
}

// ByKey returns the persona for key. The second result reports whether the
// key is known.
func ByKey(key string) (Role, bool) {
	role, ok := catalogue[key]
	return role, ok
}

// All returns the personas in progression order.
func All() []Role {
	all := make([]Role, 0, len(Order))
	for _, key := range Order {
		all = append(all, catalogue[key])
	}
	return all
}

// AtLevel returns the persona at the given level index, or false when the
// index is past the last level (all roles completed).
func AtLevel(index int) (Role, bool) {
	if index < 0 || index >= len(Order) {
		return Role{}, false
	}
	return catalogue[Order[index]], true
}

var lowerRussian = cases.Lower(language.Russian)

// IsWin reports whether the client's reply contains the agreement marker.
// Matching is case-insensitive under Russian casing rules since the model
// does not always reproduce the marker verbatim.
func IsWin(reply string) bool {
	return strings.Contains(lowerRussian.String(reply), WinMarker)
}
