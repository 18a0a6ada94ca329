package output

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

type JobOutput struct {
	ID          int
	Name        string
	Status      string
	Message     string
	Downloaded  int64
	Total       int64
	Threads     []bool
	Complete    bool
	StartTime   time.Time
	LastUpdated time.Time
	Error       error
}

type ErrorReport struct {
	Name  string
	Error error
	Time  time.Time
}

// Manager renders the live status of every registered download job.
type Manager struct {
	jobs        map[int]*JobOutput
	mutex       sync.RWMutex
	numLines    int
	errors      []ErrorReport
	doneCh      chan struct{}
	displayTick time.Duration
	jobCount    int
	displayWg   sync.WaitGroup
	live        bool
}

func NewManager() *Manager {
	return &Manager{
		jobs:        make(map[int]*JobOutput),
		doneCh:      make(chan struct{}),
		displayTick: 300 * time.Millisecond,
		live:        IsTerminal(),
	}
}

func (m *Manager) RegisterJob(name string) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.jobCount++
	now := time.Now()
	m.jobs[m.jobCount] = &JobOutput{
		ID:          m.jobCount,
		Name:        name,
		Status:      "pending",
		StartTime:   now,
		LastUpdated: now,
	}
	return m.jobCount
}

func (m *Manager) update(id int, fn func(j *JobOutput)) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if j, ok := m.jobs[id]; ok {
		fn(j)
		j.LastUpdated = time.Now()
	}
}

func (m *Manager) SetMessage(id int, message string) {
	m.update(id, func(j *JobOutput) { j.Message = message })
}

func (m *Manager) SetStatus(id int, status string) {
	m.update(id, func(j *JobOutput) { j.Status = status })
}

func (m *Manager) GetStatus(id int) string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if j, ok := m.jobs[id]; ok {
		return j.Status
	}
	return "unknown"
}

// SetProgress records the byte counters of a job and, per thread, whether
// its range is finished.
func (m *Manager) SetProgress(id int, downloaded, total int64, threads []bool) {
	m.update(id, func(j *JobOutput) {
		j.Downloaded = downloaded
		j.Total = total
		j.Threads = threads
	})
}

func (m *Manager) Complete(id int, message string) {
	m.update(id, func(j *JobOutput) {
		if message == "" {
			message = fmt.Sprintf("Completed %s", j.Name)
		}
		j.Message = message
		j.Complete = true
		j.Status = "success"
	})
}

func (m *Manager) ReportError(id int, err error) {
	m.update(id, func(j *JobOutput) {
		j.Complete = true
		j.Status = "error"
		j.Error = err
		j.Message = fmt.Sprintf("Failed %s", j.Name)
		m.errors = append(m.errors, ErrorReport{Name: j.Name, Error: err, Time: time.Now()})
	})
}

func statusIndicator(status string) string {
	switch status {
	case "success":
		return successStyle.Render(StyleSymbols["pass"])
	case "error":
		return errorStyle.Render(StyleSymbols["fail"])
	case "warning":
		return warningStyle.Render(StyleSymbols["warning"])
	case "pending":
		return pendingStyle.Render(StyleSymbols["pending"])
	default:
		return infoStyle.Render(StyleSymbols["bullet"])
	}
}

func styleMessage(status, message string) string {
	switch status {
	case "success":
		return successStyle.Render(message)
	case "error":
		return errorStyle.Render(message)
	case "warning":
		return warningStyle.Render(message)
	default:
		return pendingStyle.Render(message)
	}
}

// sortJobs groups jobs by state in registration order.
func (m *Manager) sortJobs() (active, completed []*JobOutput) {
	ids := make([]int, 0, len(m.jobs))
	for id := range m.jobs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		if j := m.jobs[id]; j.Complete {
			completed = append(completed, j)
		} else {
			active = append(active, j)
		}
	}
	return active, completed
}

// render builds the lines of one display frame, at most limit of them.
func (m *Manager) render(limit int) []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	var lines []string
	active, completed := m.sortJobs()
	indent := strings.Repeat(" ", 2)

	for _, j := range active {
		elapsed := time.Since(j.StartTime).Round(time.Second)
		lines = append(lines, fmt.Sprintf("%s%s %s %s", indent, statusIndicator(j.Status), debugStyle.Render(elapsed.String()), styleMessage(j.Status, j.Message)))
		if j.Total > 0 || len(j.Threads) > 0 {
			lines = append(lines, fmt.Sprintf("%s%s %s %s %s %s",
				strings.Repeat(" ", 6),
				streamStyle.Render(ProgressBar(j.Downloaded, j.Total, 30)),
				ThreadLine(j.Threads),
				streamStyle.Render(fmt.Sprintf("%s / %s", FormatBytes(j.Downloaded), FormatBytes(j.Total))),
				StyleSymbols["bullet"],
				streamStyle.Render(FormatSpeed(j.Downloaded, elapsed.Seconds()))))
		}
	}
	if hidden := len(completed) - 8; hidden > 2 {
		lines = append(lines, infoStyle.Render(fmt.Sprintf("%s%d downloads finished ...", indent, hidden)))
		completed = completed[hidden:]
	}
	for _, j := range completed {
		total := j.LastUpdated.Sub(j.StartTime).Round(time.Second)
		lines = append(lines, fmt.Sprintf("%s%s %s %s", indent, statusIndicator(j.Status), debugStyle.Render(total.String()), styleMessage(j.Status, j.Message)))
	}
	if len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	return lines
}

func (m *Manager) updateDisplay() {
	lines := m.render(terminalHeight() - 3)
	if m.numLines > 0 {
		fmt.Printf("\033[%dA\033[J", m.numLines)
	}
	for _, line := range lines {
		fmt.Println(line)
	}
	m.numLines = len(lines)
}

// StartDisplay redraws the job list until StopDisplay. Without a terminal
// only the final frame and summary are printed.
func (m *Manager) StartDisplay() {
	m.displayWg.Add(1)
	go func() {
		defer m.displayWg.Done()
		ticker := time.NewTicker(m.displayTick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if m.live {
					m.updateDisplay()
				}
			case <-m.doneCh:
				m.updateDisplay()
				m.ShowSummary()
				return
			}
		}
	}()
}

func (m *Manager) StopDisplay() {
	close(m.doneCh)
	m.displayWg.Wait()
}

func (m *Manager) displayErrors() {
	if len(m.errors) == 0 {
		return
	}
	fmt.Println()
	fmt.Println(strings.Repeat(" ", 2) + errorStyle.Bold(true).Render("Errors:"))
	for i, e := range m.errors {
		fmt.Printf("%s%s %s %s\n",
			strings.Repeat(" ", 4),
			errorStyle.Render(fmt.Sprintf("%d.", i+1)),
			debugStyle.Render(fmt.Sprintf("[%s]", e.Time.Format("15:04:05"))),
			errorStyle.Render(e.Name))
		fmt.Printf("%s%s\n", strings.Repeat(" ", 6), errorStyle.Render(fmt.Sprintf("Error: %v", e.Error)))
	}
}

// Summary counts the jobs that succeeded and failed.
func (m *Manager) Summary() (succeeded, failed, total int) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	for _, j := range m.jobs {
		switch j.Status {
		case "success":
			succeeded++
		case "error":
			failed++
		}
	}
	return succeeded, failed, len(m.jobs)
}

func (m *Manager) ShowSummary() {
	succeeded, failed, total := m.Summary()
	fmt.Println()
	fmt.Println(strings.Repeat(" ", 2) + summaryStyle.Render(fmt.Sprintf("Completed %d of %d", succeeded, total)))
	if failed > 0 {
		fmt.Println(strings.Repeat(" ", 2) + errorStyle.Render(fmt.Sprintf("Failed %d of %d", failed, total)))
	}
	m.mutex.RLock()
	m.displayErrors()
	m.mutex.RUnlock()
	fmt.Println()
}
