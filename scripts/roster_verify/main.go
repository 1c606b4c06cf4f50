// Command roster_verify audits a running instance's assignment ledger for a
// program: capacity overruns, double-booked time slots and duplicate courses
// per registration. It reads only public API endpoints, so it can run against
// any environment an operator can reach.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

type sectionDemand struct {
	SectionID  string `json:"sectionId"`
	CourseID   string `json:"courseId"`
	TimeSlotID string `json:"timeSlotId"`
	Capacity   int    `json:"capacity"`
}

type assignment struct {
	ID             string `json:"id"`
	SectionID      string `json:"section_id"`
	RegistrationID string `json:"registration_id"`
	CourseID       string `json:"course_id"`
	CourseTitle    string `json:"course_title"`
	Lottery        bool   `json:"created_by_lottery"`
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Pagination *struct {
		Page       int `json:"page"`
		PageSize   int `json:"page_size"`
		TotalCount int `json:"total_count"`
	} `json:"pagination"`
}

type violation struct {
	Kind   string
	Detail string
}

func main() {
	var (
		base      string
		prefix    string
		programID string
		token     string
		timeout   time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&prefix, "prefix", "/api/v1", "API route prefix")
	flag.StringVar(&programID, "program", "", "Program ID to audit (required)")
	flag.StringVar(&token, "token", os.Getenv("LOTTERY_API_TOKEN"), "Bearer token")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "HTTP client timeout")
	flag.Parse()

	if programID == "" {
		log.Fatal("-program is required")
	}

	client := &http.Client{Timeout: timeout}
	root := strings.TrimRight(base, "/") + prefix

	demand, err := fetchDemand(client, root, programID, token)
	if err != nil {
		log.Fatalf("failed to load section demand: %v", err)
	}
	assignments, err := fetchAssignments(client, root, programID, token)
	if err != nil {
		log.Fatalf("failed to load assignments: %v", err)
	}

	violations := audit(demand, assignments)
	printReport(programID, len(assignments), violations)
	if len(violations) > 0 {
		os.Exit(1)
	}
}

func audit(demand []sectionDemand, assignments []assignment) []violation {
	sections := make(map[string]sectionDemand, len(demand))
	for _, d := range demand {
		sections[d.SectionID] = d
	}

	filled := make(map[string]int)
	slotSeen := make(map[string]string)   // registration|slot -> assignment id
	courseSeen := make(map[string]string) // registration|course -> assignment id

	var violations []violation
	for _, a := range assignments {
		sec, ok := sections[a.SectionID]
		if !ok {
			violations = append(violations, violation{
				Kind:   "ORPHAN_SECTION",
				Detail: fmt.Sprintf("assignment %s references unplaced section %s", a.ID, a.SectionID),
			})
			continue
		}

		filled[a.SectionID]++
		if filled[a.SectionID] > sec.Capacity {
			violations = append(violations, violation{
				Kind:   "OVER_CAPACITY",
				Detail: fmt.Sprintf("section %s holds %d seats, capacity %d", a.SectionID, filled[a.SectionID], sec.Capacity),
			})
		}

		slotKey := a.RegistrationID + "|" + sec.TimeSlotID
		if prev, dup := slotSeen[slotKey]; dup {
			violations = append(violations, violation{
				Kind:   "DOUBLE_BOOKED",
				Detail: fmt.Sprintf("registration %s holds assignments %s and %s in time slot %s", a.RegistrationID, prev, a.ID, sec.TimeSlotID),
			})
		} else {
			slotSeen[slotKey] = a.ID
		}

		courseKey := a.RegistrationID + "|" + a.CourseID
		if prev, dup := courseSeen[courseKey]; dup {
			violations = append(violations, violation{
				Kind:   "DUPLICATE_COURSE",
				Detail: fmt.Sprintf("registration %s holds assignments %s and %s for course %q", a.RegistrationID, prev, a.ID, a.CourseTitle),
			})
		} else {
			courseSeen[courseKey] = a.ID
		}
	}
	return violations
}

func fetchDemand(client *http.Client, root, programID, token string) ([]sectionDemand, error) {
	var demand []sectionDemand
	env, err := get(client, fmt.Sprintf("%s/programs/%s/demand", root, url.PathEscape(programID)), token)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(env.Data, &demand); err != nil {
		return nil, fmt.Errorf("decode demand: %w", err)
	}
	return demand, nil
}

func fetchAssignments(client *http.Client, root, programID, token string) ([]assignment, error) {
	var all []assignment
	for page := 1; ; page++ {
		u := fmt.Sprintf("%s/programs/%s/assignments?page=%d&page_size=200", root, url.PathEscape(programID), page)
		env, err := get(client, u, token)
		if err != nil {
			return nil, err
		}
		var batch []assignment
		if err := json.Unmarshal(env.Data, &batch); err != nil {
			return nil, fmt.Errorf("decode assignments page %d: %w", page, err)
		}
		all = append(all, batch...)
		if env.Pagination == nil || len(all) >= env.Pagination.TotalCount || len(batch) == 0 {
			return all, nil
		}
	}
}

func get(client *http.Client, rawURL, token string) (*envelope, error) {
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode response (%d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := "unknown error"
		if env.Error != nil {
			msg = env.Error.Message
		}
		return nil, fmt.Errorf("GET %s: %d %s", rawURL, resp.StatusCode, msg)
	}
	return &env, nil
}

func printReport(programID string, seats int, violations []violation) {
	fmt.Println("Roster Verify Report")
	fmt.Println("====================")
	fmt.Printf("Program: %s\n", programID)
	fmt.Printf("Seats inspected: %d\n", seats)
	if len(violations) == 0 {
		fmt.Println("No violations found.")
		return
	}
	for _, v := range violations {
		fmt.Printf("[%s] %s\n", v.Kind, v.Detail)
	}
	fmt.Printf("Violations: %d\n", len(violations))
}
