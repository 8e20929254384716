package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"

	"proctorhub/internal/model"
)

func init() {
	// Load .env file if present
	godotenv.Load()
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	baseURL := os.Getenv("PROCTOR_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	token := os.Getenv("PROCTOR_TOKEN")
	if token == "" {
		log.Fatal("PROCTOR_TOKEN not set")
	}

	c := &client{baseURL: baseURL, token: token, http: &http.Client{Timeout: 15 * time.Second}}

	switch os.Args[1] {
	case "sessions":
		requireArgs(3, "sessions <examId>")
		c.sessions(os.Args[2])
	case "violations":
		requireArgs(3, "violations <examId> [limit]")
		limit := 50
		if len(os.Args) > 3 {
			limit, _ = strconv.Atoi(os.Args[3])
		}
		c.violations(os.Args[2], limit)
	case "history":
		requireArgs(4, "history <examId> <candidateId>")
		c.history(os.Args[2], os.Args[3])
	case "extend":
		requireArgs(5, "extend <examId> <candidateId> <minutes>")
		minutes, err := strconv.Atoi(os.Args[4])
		if err != nil || minutes <= 0 {
			log.Fatal("minutes must be a positive integer")
		}
		c.extend(os.Args[2], os.Args[3], minutes)
	case "terminate":
		requireArgs(4, "terminate <examId> <candidateId> [reason]")
		reason := ""
		if len(os.Args) > 4 {
			reason = os.Args[4]
		}
		c.terminate(os.Args[2], os.Args[3], reason)
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	color.Cyan("proctorctl - exam proctoring operator CLI")
	fmt.Println("Usage:")
	fmt.Println("  proctorctl sessions <examId>")
	fmt.Println("  proctorctl violations <examId> [limit]")
	fmt.Println("  proctorctl history <examId> <candidateId>")
	fmt.Println("  proctorctl extend <examId> <candidateId> <minutes>")
	fmt.Println("  proctorctl terminate <examId> <candidateId> [reason]")
}

func requireArgs(n int, form string) {
	if len(os.Args) < n {
		log.Fatalf("usage: proctorctl %s", form)
	}
}

type client struct {
	baseURL string
	token   string
	http    *http.Client
}

func (c *client) get(path string, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %s: %s", resp.Status, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *client) post(path string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %s: %s", resp.Status, raw)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *client) sessions(examID string) {
	var sessions []model.CandidateSession
	if err := c.get("/v1/exams/"+examID+"/sessions", &sessions); err != nil {
		log.Fatal(err)
	}

	color.Yellow("\nSessions for exam %s", examID)
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Candidate", "Name", "Status", "Progress", "Violations", "Severity", "Extra Min"})
	for _, s := range sessions {
		table.Append([]string{
			s.CandidateID,
			s.CandidateName,
			string(s.Status),
			fmt.Sprintf("%d/%d", s.QuestionsAnswered, s.TotalQuestions),
			strconv.Itoa(s.ViolationCount),
			s.HighestSeverity.String(),
			strconv.Itoa(s.ExtraTimeMinutes),
		})
	}
	table.Render()
}

func (c *client) violations(examID string, limit int) {
	var violations []model.ViolationLog
	path := fmt.Sprintf("/v1/exams/%s/violations?limit=%d", examID, limit)
	if err := c.get(path, &violations); err != nil {
		log.Fatal(err)
	}

	color.Yellow("\nRecent violations for exam %s", examID)
	renderViolations(violations)
}

func (c *client) history(examID, candidateID string) {
	var violations []model.ViolationLog
	path := fmt.Sprintf("/v1/exams/%s/candidates/%s/violations", examID, candidateID)
	if err := c.get(path, &violations); err != nil {
		log.Fatal(err)
	}

	color.Yellow("\nViolation history for candidate %s", candidateID)
	renderViolations(violations)
}

func renderViolations(violations []model.ViolationLog) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Time", "Candidate", "Type", "Severity", "Description"})
	for _, v := range violations {
		table.Append([]string{
			v.CreatedAt.Format("15:04:05"),
			v.CandidateName,
			v.Type,
			v.Severity.String(),
			v.Description,
		})
	}
	table.Render()
}

func (c *client) extend(examID, candidateID string, minutes int) {
	var session model.CandidateSession
	path := fmt.Sprintf("/v1/exams/%s/candidates/%s/extend-time", examID, candidateID)
	if err := c.post(path, map[string]int{"minutes": minutes}, &session); err != nil {
		log.Fatal(err)
	}
	color.Green("Granted %d extra minutes to %s (total %d)", minutes, candidateID, session.ExtraTimeMinutes)
}

func (c *client) terminate(examID, candidateID, reason string) {
	var session model.CandidateSession
	path := fmt.Sprintf("/v1/exams/%s/candidates/%s/terminate", examID, candidateID)
	if err := c.post(path, map[string]string{"reason": reason}, &session); err != nil {
		log.Fatal(err)
	}
	color.Red("Terminated session for %s", candidateID)
}
