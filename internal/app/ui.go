package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/data/binding"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"yashubustudio/zsearch/internal/analytics"
	"yashubustudio/zsearch/internal/store"
	"yashubustudio/zsearch/ranker"
)

const (
	logDebounceInterval = 150 * time.Millisecond
	searchTimeout       = 30 * time.Second
)

type tableColumn struct {
	Title  string
	Width  float32
	Render func(ranker.Candidate) string
}

var resultColumns = []tableColumn{
	{Title: "Товар", Width: 300, Render: func(p ranker.Candidate) string { return p.Name }},
	{Title: "Маркетплейс", Width: 130, Render: func(p ranker.Candidate) string { return p.Marketplace }},
	{Title: "Цена, ₽", Width: 100, Render: func(p ranker.Candidate) string { return formatPrice(p.Price) }},
	{Title: "Рейтинг", Width: 80, Render: func(p ranker.Candidate) string { return strconv.FormatFloat(p.Rating, 'f', 1, 64) }},
	{Title: "Отзывы", Width: 80, Render: func(p ranker.Candidate) string { return strconv.Itoa(p.ReviewsCount) }},
	{Title: "Доставка", Width: 120, Render: func(p ranker.Candidate) string { return p.DeliveryTime }},
}

type uiState struct {
	service *Service
	logs    *logPane

	w          fyne.Window
	query      *widget.Entry
	resTbl     *widget.Table
	recList    *widget.List
	rows       []ranker.Candidate
	recs       []ranker.ScoredCandidate
	statusBind binding.String
	statsBind  binding.String
	userBind   binding.String
	compareLbl *widget.Label

	searchBtn  *widget.Button
	exportBtn  *widget.Button
	historyBtn *widget.Button
	compareBtn *widget.Button
}

func buildUI(a fyne.App, svc *Service, logs *logPane) *uiState {
	u := &uiState{service: svc, logs: logs}
	u.w = a.NewWindow("zsearch: поиск товаров")
	u.statusBind = binding.NewString()
	_ = u.statusBind.Set("Готово")
	u.statsBind = binding.NewString()
	u.userBind = binding.NewString()
	u.w.SetContent(u.loginView())
	u.w.Resize(fyne.NewSize(1180, 760))
	return u
}

func (u *uiState) loginView() fyne.CanvasObject {
	username := widget.NewEntry()
	username.SetPlaceHolder("Имя пользователя")
	password := widget.NewPasswordEntry()
	password.SetPlaceHolder("Пароль")

	doLogin := func() {
		sess, err := u.service.Login(context.Background(), username.Text, password.Text)
		if err != nil {
			dialog.ShowError(loginError(err), u.w)
			return
		}
		password.SetText("")
		_ = u.userBind.Set(sess.Username)
		u.w.SetContent(u.mainView())
	}
	password.OnSubmitted = func(string) { doLogin() }

	loginBtn := widget.NewButtonWithIcon("Войти", theme.LoginIcon(), doLogin)
	registerBtn := widget.NewButtonWithIcon("Регистрация", theme.AccountIcon(), func() {
		if err := u.service.Register(context.Background(), username.Text, password.Text); err != nil {
			dialog.ShowError(loginError(err), u.w)
			return
		}
		dialog.ShowInformation("Регистрация", "Пользователь создан, теперь можно войти", u.w)
	})

	form := container.NewVBox(
		widget.NewLabelWithStyle("Вход", fyne.TextAlignCenter, fyne.TextStyle{Bold: true}),
		username,
		password,
		container.NewGridWithColumns(2, loginBtn, registerBtn),
	)
	return container.NewCenter(container.NewGridWrap(fyne.NewSize(360, form.MinSize().Height), form))
}

func (u *uiState) mainView() fyne.CanvasObject {
	u.query = widget.NewEntry()
	u.query.SetPlaceHolder("Что ищем?")
	u.query.OnSubmitted = func(string) { u.onSearch() }

	u.searchBtn = widget.NewButtonWithIcon("Найти", theme.SearchIcon(), func() { u.onSearch() })
	u.historyBtn = widget.NewButtonWithIcon("История", theme.HistoryIcon(), func() { u.onHistory() })
	u.exportBtn = widget.NewButtonWithIcon("CSV", theme.DocumentSaveIcon(), func() { u.onExport() })
	u.compareBtn = widget.NewButtonWithIcon("Сравнить", theme.ListIcon(), func() { u.onCompare() })
	logoutBtn := widget.NewButtonWithIcon("Выйти", theme.LogoutIcon(), func() {
		u.service.Logout()
		u.rows, u.recs = nil, nil
		u.w.SetContent(u.loginView())
	})

	u.resTbl = widget.NewTable(
		func() (int, int) { return len(u.rows) + 1, len(resultColumns) },
		func() fyne.CanvasObject {
			lbl := widget.NewLabel("")
			lbl.Truncation = fyne.TextTruncateEllipsis
			return lbl
		},
		func(id widget.TableCellID, obj fyne.CanvasObject) {
			lbl := obj.(*widget.Label)
			if id.Row == 0 {
				lbl.SetText(resultColumns[id.Col].Title)
				lbl.TextStyle = fyne.TextStyle{Bold: true}
				return
			}
			lbl.TextStyle = fyne.TextStyle{}
			if id.Row-1 >= len(u.rows) {
				lbl.SetText("")
				return
			}
			lbl.SetText(resultColumns[id.Col].Render(u.rows[id.Row-1]))
		},
	)
	for i, col := range resultColumns {
		u.resTbl.SetColumnWidth(i, col.Width)
	}
	u.resTbl.OnSelected = func(id widget.TableCellID) {
		u.resTbl.UnselectAll()
		if id.Row > 0 && id.Row-1 < len(u.rows) {
			u.showDetails(u.rows[id.Row-1])
		}
	}

	u.recList = widget.NewList(
		func() int { return len(u.recs) },
		func() fyne.CanvasObject {
			return container.NewVBox(widget.NewLabelWithStyle("", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}), widget.NewLabel(""))
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			box := obj.(*fyne.Container)
			if id >= len(u.recs) {
				return
			}
			r := u.recs[id]
			box.Objects[0].(*widget.Label).SetText(fmt.Sprintf("%s (%s)", r.Name, r.Marketplace))
			box.Objects[1].(*widget.Label).SetText(formatBreakdown(r))
		},
	)
	u.recList.OnSelected = func(id widget.ListItemID) {
		u.recList.UnselectAll()
		if id < len(u.recs) {
			u.showDetails(u.recs[id].Candidate)
		}
	}

	u.compareLbl = widget.NewLabel("")
	u.refreshCompare()

	logEntry := widget.NewEntryWithData(u.logs.bind)
	logEntry.MultiLine = true
	logEntry.Wrapping = fyne.TextWrapWord
	logEntry.Disable()

	toolbar := container.NewBorder(nil, nil, nil,
		container.NewHBox(u.searchBtn, u.historyBtn, u.exportBtn, u.compareBtn, logoutBtn),
		u.query,
	)
	header := container.NewVBox(
		container.NewHBox(widget.NewLabel("Пользователь:"), widget.NewLabelWithData(u.userBind)),
		toolbar,
		widget.NewLabelWithData(u.statusBind),
	)
	right := container.NewVSplit(
		container.NewBorder(
			widget.NewLabelWithStyle("Рекомендации", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
			container.NewVBox(widget.NewSeparator(), widget.NewLabelWithData(u.statsBind), u.compareLbl),
			nil, nil, u.recList,
		),
		container.NewBorder(
			widget.NewLabelWithStyle("Журнал", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
			nil, nil, nil, logEntry,
		),
	)
	right.Offset = 0.65
	split := container.NewHSplit(u.resTbl, right)
	split.Offset = 0.62
	return container.NewBorder(header, nil, nil, nil, split)
}

func (u *uiState) setBusy(b bool) {
	fyne.Do(func() {
		for _, btn := range []*widget.Button{u.searchBtn, u.exportBtn, u.historyBtn} {
			if b {
				btn.Disable()
			} else {
				btn.Enable()
			}
		}
	})
}

func (u *uiState) setStatus(text string) {
	_ = u.statusBind.Set(text)
}

func (u *uiState) onSearch() {
	query := strings.TrimSpace(u.query.Text)
	if query == "" {
		dialog.ShowInformation("Поиск", "Введите поисковый запрос", u.w)
		return
	}
	u.setBusy(true)
	u.setStatus("Идёт поиск...")
	start := time.Now()

	go func() {
		defer u.setBusy(false)
		ctx, cancel := context.WithTimeout(context.Background(), searchTimeout)
		defer cancel()
		res, err := u.service.Search(ctx, query)
		if err != nil {
			u.setStatus("Ошибка поиска")
			fyne.Do(func() { dialog.ShowError(err, u.w) })
			return
		}
		fyne.Do(func() {
			u.rows = tableRows(res)
			u.recs = res.Recommendations
			u.resTbl.Refresh()
			u.recList.Refresh()
		})
		_ = u.statsBind.Set(formatStats(res.PriceStats))
		if len(res.Products) == 0 {
			u.setStatus(fmt.Sprintf("По запросу «%s» ничего не найдено", query))
			return
		}
		u.setStatus(fmt.Sprintf("Найдено товаров: %d, показано %d (%.1fs)",
			len(res.Products), len(res.Shown), time.Since(start).Seconds()))
	}()
}

// tableRows is what the results table renders. Recommendations are
// de-duplicated against exactly this set.
func tableRows(res SearchResult) []ranker.Candidate {
	return res.Shown
}

func (u *uiState) onHistory() {
	queries, err := u.service.History(context.Background())
	if err != nil {
		dialog.ShowError(err, u.w)
		return
	}
	if len(queries) == 0 {
		dialog.ShowInformation("История", "История запросов пуста", u.w)
		return
	}
	var d dialog.Dialog
	list := widget.NewList(
		func() int { return len(queries) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(id widget.ListItemID, obj fyne.CanvasObject) { obj.(*widget.Label).SetText(queries[id]) },
	)
	list.OnSelected = func(id widget.ListItemID) {
		d.Hide()
		u.query.SetText(queries[id])
		u.onSearch()
	}
	d = dialog.NewCustom("История запросов", "Закрыть", container.NewGridWrap(fyne.NewSize(360, 320), list), u.w)
	d.Show()
}

func (u *uiState) onExport() {
	if len(u.rows) == 0 {
		dialog.ShowInformation("Экспорт", "Нет данных для экспорта", u.w)
		return
	}
	fd := dialog.NewFileSave(func(uc fyne.URIWriteCloser, err error) {
		if err != nil || uc == nil {
			return
		}
		defer uc.Close()
		if err := u.service.ExportCSV(uc); err != nil {
			dialog.ShowError(err, u.w)
			return
		}
		u.setStatus("Экспорт завершён")
	}, u.w)
	fd.SetFileName("export.csv")
	fd.Show()
}

func (u *uiState) showDetails(p ranker.Candidate) {
	d := u.service.ProductDetails(p)
	recommended := "н/д"
	if d.HasRecommendation {
		recommended = formatPrice(d.RecommendedPrice)
	}
	desc := widget.NewLabel(p.Description)
	desc.Wrapping = fyne.TextWrapWord
	content := container.NewVBox(
		widget.NewLabelWithStyle(p.Name, fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		widget.NewLabel(fmt.Sprintf("Маркетплейс: %s", p.Marketplace)),
		widget.NewLabel(fmt.Sprintf("Цена: %s ₽", formatPrice(p.Price))),
		widget.NewLabel(fmt.Sprintf("Рейтинг: %.1f/5, отзывов: %d", p.Rating, p.ReviewsCount)),
		widget.NewLabel(fmt.Sprintf("Доставка: %s", p.DeliveryTime)),
		desc,
		widget.NewSeparator(),
		widget.NewLabel(fmt.Sprintf("Рекомендованная цена: %s ₽ (%s)", recommended, d.PriceExplanation)),
		widget.NewLabel(fmt.Sprintf("Прогноз спроса: %s (%s)", d.Demand, d.DemandExplanation)),
	)
	if p.ProductURL != "" && !strings.HasPrefix(p.ProductURL, "#mock") {
		content.Add(widget.NewLabel(p.ProductURL))
	}
	toggleLabel := "Добавить к сравнению"
	for _, c := range u.service.CompareList() {
		if c.Key() == p.Key() {
			toggleLabel = "Убрать из сравнения"
		}
	}
	dialog.NewCustomConfirm("Детали товара", toggleLabel, "Закрыть", container.NewGridWrap(fyne.NewSize(440, 420), container.NewVScroll(content)), func(ok bool) {
		if !ok {
			return
		}
		if _, err := u.service.ToggleCompare(p); err != nil {
			dialog.ShowError(err, u.w)
			return
		}
		u.refreshCompare()
	}, u.w).Show()
}

func (u *uiState) refreshCompare() {
	n := len(u.service.CompareList())
	u.compareLbl.SetText(fmt.Sprintf("К сравнению: %d из %d", n, analytics.MaxCompare))
}

func (u *uiState) onCompare() {
	cmp := u.service.Comparison()
	if len(cmp.Products) == 0 {
		dialog.ShowInformation("Сравнение", "Выберите товары для сравнения", u.w)
		return
	}
	tbl := widget.NewTable(
		func() (int, int) { return len(cmp.Rows) + 1, len(cmp.Products) + 1 },
		func() fyne.CanvasObject {
			lbl := widget.NewLabel("")
			lbl.Truncation = fyne.TextTruncateEllipsis
			return lbl
		},
		func(id widget.TableCellID, obj fyne.CanvasObject) {
			lbl := obj.(*widget.Label)
			lbl.TextStyle = fyne.TextStyle{}
			switch {
			case id.Row == 0 && id.Col == 0:
				lbl.SetText("")
			case id.Row == 0:
				lbl.TextStyle = fyne.TextStyle{Bold: true}
				lbl.SetText(cmp.Products[id.Col-1].Name)
			case id.Col == 0:
				lbl.SetText(cmp.Rows[id.Row-1].Attribute)
			default:
				row := cmp.Rows[id.Row-1]
				text := row.Values[id.Col-1]
				if (row.Attribute == "price" && id.Col-1 == cmp.BestPrice) ||
					(row.Attribute == "rating" && id.Col-1 == cmp.BestRating) {
					lbl.TextStyle = fyne.TextStyle{Bold: true}
					text += " ★"
				}
				lbl.SetText(text)
			}
		},
	)
	tbl.SetColumnWidth(0, 110)
	for i := range cmp.Products {
		tbl.SetColumnWidth(i+1, 160)
	}
	width := float32(110 + 160*len(cmp.Products) + 20)
	dialog.NewCustom("Сравнение товаров", "Закрыть", container.NewGridWrap(fyne.NewSize(width, 260), tbl), u.w).Show()
}

func loginError(err error) error {
	switch {
	case errors.Is(err, ErrNotLoggedIn):
		return errors.New("необходимо войти")
	case errors.Is(err, store.ErrInvalidCredentials):
		return errors.New("неверное имя пользователя или пароль")
	}
	return err
}

func formatPrice(p float64) string {
	if p <= 0 {
		return "н/д"
	}
	return strconv.FormatFloat(p, 'f', 2, 64)
}

func formatBreakdown(r ranker.ScoredCandidate) string {
	if r.Breakdown == nil {
		return fmt.Sprintf("рейтинг %.1f", r.Rating)
	}
	b := r.Breakdown
	return fmt.Sprintf("оценка %.3f: релевантность %.2f, рейтинг %.2f, цена %.2f", r.Score, b.Relevance, b.RatingScore, b.PriceScore)
}

func formatStats(stats []analytics.PriceStats) string {
	if len(stats) == 0 {
		return ""
	}
	lines := make([]string, 0, len(stats))
	for _, s := range stats {
		lines = append(lines, fmt.Sprintf("%s: %d шт., %s–%s ₽, медиана %s ₽",
			s.Marketplace, s.Count, formatPrice(s.Min), formatPrice(s.Max), formatPrice(s.Median)))
	}
	return strings.Join(lines, "\n")
}

// logPane collects log lines for the window and pushes them into a binding
// at most once per logDebounceInterval.
type logPane struct {
	bind     binding.String
	maxLines int

	mu      sync.Mutex
	lines   []string
	partial string
	update  chan struct{}
}

func newLogPane(maxLines int) *logPane {
	p := &logPane{bind: binding.NewString(), maxLines: maxLines, update: make(chan struct{}, 1)}
	go p.loop()
	return p
}

func (p *logPane) Write(data []byte) (int, error) {
	p.mu.Lock()
	text := p.partial + string(data)
	parts := strings.Split(text, "\n")
	p.partial = parts[len(parts)-1]
	for _, line := range parts[:len(parts)-1] {
		if line = strings.TrimRight(line, "\r"); line != "" {
			p.lines = append(p.lines, line)
		}
	}
	if len(p.lines) > p.maxLines {
		p.lines = append([]string(nil), p.lines[len(p.lines)-p.maxLines:]...)
	}
	p.mu.Unlock()

	select {
	case p.update <- struct{}{}:
	default:
	}
	return len(data), nil
}

func (p *logPane) Sync() error { return nil }

func (p *logPane) loop() {
	timer := time.NewTimer(logDebounceInterval)
	if !timer.Stop() {
		<-timer.C
	}
	for {
		select {
		case <-p.update:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(logDebounceInterval)
		case <-timer.C:
			p.flush()
		}
	}
}

func (p *logPane) flush() {
	p.mu.Lock()
	text := strings.Join(p.lines, "\n")
	p.mu.Unlock()
	_ = p.bind.Set(text)
}

func (p *logPane) Text() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return strings.Join(p.lines, "\n")
}
