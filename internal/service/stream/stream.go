package stream

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNilSource возвращается, если потока нет вовсе.
var ErrNilSource = errors.New("nil fragment source")

// Source — ленивая конечная последовательность текстовых фрагментов.
// Форма совпадает с потоками SDK: Next продвигает курсор, Current отдаёт фрагмент,
// Err сообщает причину остановки (nil — штатный конец стрима от провайдера).
type Source interface {
	Next() bool
	Current() string
	Err() error
}

// Accumulator сворачивает фрагменты в растущий текст. Без ввода-вывода.
type Accumulator struct {
	buf       strings.Builder
	fragments int
}

// Add дописывает фрагмент и возвращает текущий буфер целиком.
func (a *Accumulator) Add(fragment string) string {
	a.buf.WriteString(fragment)
	a.fragments++
	return a.buf.String()
}

func (a *Accumulator) Text() string { return a.buf.String() }

func (a *Accumulator) Fragments() int { return a.fragments }

// Consume вычитывает источник до конца. onFragment вызывается после каждого фрагмента
// с накопленным буфером (может быть nil). При ошибке частичный буфер отбрасывается.
func Consume(src Source, onFragment func(partial string)) (string, error) {
	if src == nil {
		return "", ErrNilSource
	}
	var acc Accumulator
	for src.Next() {
		partial := acc.Add(src.Current())
		if onFragment != nil {
			onFragment(partial)
		}
	}
	if err := src.Err(); err != nil {
		return "", fmt.Errorf("stream interrupted after %d fragments: %w", acc.Fragments(), err)
	}
	return acc.Text(), nil
}

// SliceSource — источник поверх готового списка фрагментов; Fail, если задан,
// возвращается из Err после исчерпания списка.
type SliceSource struct {
	Fragments []string
	Fail      error

	pos int
}

func (s *SliceSource) Next() bool {
	if s.pos >= len(s.Fragments) {
		return false
	}
	s.pos++
	return true
}

func (s *SliceSource) Current() string {
	if s.pos == 0 || s.pos > len(s.Fragments) {
		return ""
	}
	return s.Fragments[s.pos-1]
}

func (s *SliceSource) Err() error {
	if s.pos < len(s.Fragments) {
		return nil
	}
	return s.Fail
}

func (s *SliceSource) Close() error { return nil }
