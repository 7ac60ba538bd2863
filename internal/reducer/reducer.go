// Package reducer содержит чистую функцию слияния ленты тикетов.
// Никакого скрытого состояния: одинаковые входы дают одинаковый результат,
// поэтому алгоритм тестируется без сети и без брокера.
package reducer

import "github.com/psds-microservice/ticket-feed-service/internal/model"

// Merge применяет пачку тикетов к текущей ленте и возвращает новую ленту.
// Исходный слайс не мутируется. Правила, по одному тикету в порядке пачки:
//
//   - тикет с тем же id уже в ленте — данные заменяются на месте;
//   - после вставки (замены или добавления) тикет с unread_messages > 0
//     переносится в начало ленты — непрочитанные всплывают первыми;
//   - тикета с таким id нет — добавляется в конец.
//
// Дубликатов id в результате не бывает.
func Merge(current []model.Ticket, batch []model.Ticket) []model.Ticket {
	out := make([]model.Ticket, len(current), len(current)+len(batch))
	copy(out, current)
	for _, t := range batch {
		i := indexOf(out, t.ID)
		if i >= 0 {
			out[i] = t
		} else {
			out = append(out, t)
			i = len(out) - 1
		}
		if t.UnreadMessages > 0 && i > 0 {
			moved := out[i]
			copy(out[1:i+1], out[:i])
			out[0] = moved
		}
	}
	return out
}

// Remove возвращает ленту без тикета с данным id. Отсутствующий id — no-op.
func Remove(current []model.Ticket, id uint64) []model.Ticket {
	i := indexOf(current, id)
	if i < 0 {
		return current
	}
	out := make([]model.Ticket, 0, len(current)-1)
	out = append(out, current[:i]...)
	return append(out, current[i+1:]...)
}

// Reset — пустая лента; применяется при смене фильтра.
func Reset() []model.Ticket {
	return nil
}

func indexOf(list []model.Ticket, id uint64) int {
	for i := range list {
		if list[i].ID == id {
			return i
		}
	}
	return -1
}
