// Package yearmonth вычисляет канонический ключ календарного месяца
// для периодов бесплатной квоты. Сброс квоты на первое число месяца
// сводится к вычислению ключа на момент запроса: отсутствие записи
// для нового ключа означает ноль использованных операций.
package yearmonth

import "time"

// Layout формат ключа календарного месяца.
const Layout = "2006-01"

// Key возвращает ключ календарного месяца для момента t в UTC.
func Key(t time.Time) string {
	return t.UTC().Format(Layout)
}

// Same сообщает, попадают ли оба момента в один календарный месяц.
func Same(a, b time.Time) bool {
	return Key(a) == Key(b)
}
