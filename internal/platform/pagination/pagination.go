package pagination

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Page describe una página de resultados. Page empieza en 1.
type Page[T any] struct {
	Items      []T
	Page       int
	PageSize   int
	Total      int
	TotalPages int
}

func (p Page[T]) HasNext() bool { return p.Page < p.TotalPages }
func (p Page[T]) HasPrev() bool { return p.Page > 1 }

// Normalize aplica defaults: page<=0 → 1, pageSize<=0 → DefaultPageSize,
// pageSize>MaxPageSize → MaxPageSize.
func Normalize(page, pageSize int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// Offset devuelve el offset SQL para una página ya normalizada.
func Offset(page, pageSize int) int {
	return (page - 1) * pageSize
}

// New arma la metadata a partir de los items de la ventana y el total global.
func New[T any](items []T, page, pageSize, total int) Page[T] {
	page, pageSize = Normalize(page, pageSize)
	if items == nil {
		items = []T{}
	}
	totalPages := 0
	if total > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}
	return Page[T]{
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
	}
}
