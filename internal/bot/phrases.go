// Package bot is the presentation layer of Kick: it renders wizard
// directives into outbound Russian text with numbered reply controls and
// routes inbound messages (password attempts, commands, wizard replies,
// schedule dialogue, voice notes) into the core packages.
package bot

// Bot communication phrases. Strictly neutral wording, no emojis.
const (
	phraseAuthRequest = "Введите пароль для доступа."
	phraseAuthSuccess = "Доступ разрешен."
	phraseAuthFailed  = "Неверный пароль. Попробуйте еще раз."

	phraseReminderPrompt     = "Готов записать наблюдение?"
	phraseReminderConfigured = "Напоминания настроены."
	phraseReminderRequest    = "Отправь расписание напоминаний в свободной форме."
	phraseReminderDisabled   = "Напоминания отключены."
	phraseNoSchedule         = "У вас нет настроенного расписания."

	phrasePracticeSaved  = "Запись сохранена."
	phraseCompletePrompt = "Завершить запись?"

	phraseConfirmAnswer = "Всё ок"
	phraseGoBack        = "Назад"
	phraseBtnYes        = "Да"
	phraseBtnNo         = "Нет"
	phraseBtnSave       = "Сохранить"
	phraseBtnConfirm    = "Подтвердить"
	phraseBtnCancel     = "Отменить"

	phraseEmptyAnswer     = "Ответ не может быть пустым. Напишите текст или отправьте голосовое сообщение."
	phraseAtFirstField    = "Это первый шаг, вернуться назад нельзя."
	phraseNotReadyToSave  = "Сначала ответьте на все вопросы."
	phraseGenericError    = "Произошла ошибка. Попробуйте еще раз."
	phraseScheduleFailed  = "Не удалось распознать расписание. Попробуйте еще раз."
	phraseVoiceFailed     = "Не удалось распознать голосовое сообщение. Попробуйте еще раз."
	phraseTimezoneInvalid = "Неверный часовой пояс: %s. Попробуйте еще раз."

	phraseTimezoneQuestion = "В каком часовом поясе вы находитесь?"
	phraseTimezoneCustom   = "Введите часовой пояс в формате Регион/Город (например, Europe/Moscow)."

	phraseDataCleared      = "Все записи удалены."
	phraseDataClearConfirm = "Вы уверены? Все записи будут удалены без возможности восстановления."

	phraseCancelled = "Отменено."

	phraseHelp = "Команды:\n" +
		"/practice — начать запись наблюдения\n" +
		"/schedule — настроить напоминания\n" +
		"/view_schedule — показать расписание\n" +
		"/disable_schedule — отключить напоминания\n" +
		"/entries — количество записей\n" +
		"/delete_all — удалить все данные\n" +
		"/cancel — отменить текущее действие"
)

// timezoneOption pairs a user-facing UTC-offset label with an IANA zone.
type timezoneOption struct {
	Label string
	Zone  string
}

// timezoneOptions is the canned timezone list offered during schedule
// configuration, ordered by UTC offset. The final "other" entry switches to
// free-form timezone input.
var timezoneOptions = []timezoneOption{
	{"UTC+0 — Лондон, Лиссабон, Касабланка", "Europe/London"},
	{"UTC+1 — Берлин, Париж, Рим, Мадрид", "Europe/Berlin"},
	{"UTC+2 — Киев, Каир, Калининград", "Europe/Kyiv"},
	{"UTC+3 — Москва, Стамбул, Найроби", "Europe/Moscow"},
	{"UTC+4 — Дубай, Баку, Самара, Ереван", "Asia/Dubai"},
	{"UTC+5 — Екатеринбург, Ташкент, Карачи", "Asia/Tashkent"},
	{"UTC+5:30 — Нью-Дели, Мумбаи, Калькутта", "Asia/Kolkata"},
	{"UTC+6 — Алматы, Дакка, Бишкек, Омск", "Asia/Almaty"},
	{"UTC+6:30 — Янгон, Нейпьидо, Мандалай", "Asia/Yangon"},
	{"UTC+7 — Новосибирск, Бангкок, Джакарта", "Asia/Bangkok"},
	{"UTC+8 — Иркутск, Гонконг, Сингапур", "Asia/Shanghai"},
	{"UTC+9 — Якутск, Токио, Сеул", "Asia/Tokyo"},
	{"UTC+9:30 — Аделаида, Дарвин", "Australia/Adelaide"},
	{"UTC+10 — Владивосток, Сидней, Мельбурн", "Australia/Sydney"},
	{"UTC+10:30 — остров Лорд-Хау", "Australia/Lord_Howe"},
	{"UTC+11 — Магадан, Сахалин, Нумеа", "Asia/Magadan"},
	{"UTC+12 — Петропавловск-Камчатский, Анадырь", "Pacific/Auckland"},
	{"UTC+13 — Токелау, Нукуалофа, Апиа", "Pacific/Tongatapu"},
	{"UTC+14 — Киритимати (Остров Рождества)", "Pacific/Kiritimati"},
}

const timezoneCustomLabel = "Другой часовой пояс"
