package conversation

import "sync"

// Role — роль автора реплики.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message — одна завершённая реплика диалога. Частичные (стримящиеся) ответы сюда не попадают.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Store — упорядоченный журнал реплик одной сессии.
// Только добавление в конец; очистка атомарна и целиком, частичного усечения нет.
type Store struct {
	mu       sync.Mutex
	messages []Message
}

func New() *Store {
	return &Store{messages: make([]Message, 0, 16)}
}

// AppendUser добавляет реплику пользователя.
func (s *Store) AppendUser(content string) {
	s.append(Message{Role: RoleUser, Content: content})
}

// AppendAssistant добавляет итоговый ответ ассистента.
func (s *Store) AppendAssistant(content string) {
	s.append(Message{Role: RoleAssistant, Content: content})
}

func (s *Store) append(m Message) {
	s.mu.Lock()
	s.messages = append(s.messages, m)
	s.mu.Unlock()
}

// Messages возвращает копию журнала в порядке добавления.
func (s *Store) Messages() []Message {
	s.mu.Lock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	s.mu.Unlock()
	return out
}

// Clear сбрасывает журнал. Возвращает false, если он уже был пуст.
func (s *Store) Clear() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return false
	}
	s.messages = make([]Message, 0, 16)
	return true
}

func (s *Store) Len() int {
	s.mu.Lock()
	l := len(s.messages)
	s.mu.Unlock()
	return l
}
