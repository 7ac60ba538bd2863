package session

type pageState int

const (
	stateIdle pageState = iota
	stateLoading
	stateExhausted
)

func (s pageState) String() string {
	switch s {
	case stateLoading:
		return "loading"
	case stateExhausted:
		return "exhausted"
	default:
		return "idle"
	}
}

// paginator — машина состояний подкачки: Idle → Loading → Idle по кругу,
// Exhausted — терминальное для текущего фильтра. page — номер последней
// доставленной страницы, а не запрошенной: сорвавшаяся загрузка не
// сдвигает позицию, и после ошибки первой страницы повтор снова идёт
// за первой.
type paginator struct {
	page  int
	state pageState
}

// reset: фильтр сменился — доставленных страниц нет, сразу в загрузку,
// exhausted снимается.
func (p *paginator) reset() {
	p.page = 0
	p.state = stateLoading
}

// requestNext — сигнал приближения к концу ленты. Номер следующей страницы
// выдаётся только из Idle: во время загрузки и после исчерпания запросов нет.
func (p *paginator) requestNext() (int, bool) {
	if p.state != stateIdle {
		return 0, false
	}
	p.state = stateLoading
	return p.page + 1, true
}

// delivered фиксирует доставленную страницу; has_more=false исчерпывает выдачу.
func (p *paginator) delivered(pageNumber int, hasMore bool) {
	p.page = pageNumber
	if hasMore {
		p.state = stateIdle
	} else {
		p.state = stateExhausted
	}
}

// failed возвращает машину в Idle после ошибки выборки: повторный запрос —
// ответственность потребителя.
func (p *paginator) failed() {
	if p.state == stateLoading {
		p.state = stateIdle
	}
}
