package main

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// --- register / login ---

var registerCmd = &cobra.Command{
	Use:   "register <email>",
	Short: "Create an account on the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := promptPassword("Password: ")
		if err != nil {
			return err
		}

		client := newAnonymousClient()
		resp, err := client.postJSON(cmd.Context(), "/auth/register", map[string]string{
			"email":    args[0],
			"password": password,
		})
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if err := saveToken(result["token"]); err != nil {
			return fmt.Errorf("saving session: %w", err)
		}
		printSuccess("Registered %s (session valid until %s)", args[0], result["expiresAt"])
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Log in and store the session token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := promptPassword("Password: ")
		if err != nil {
			return err
		}

		client := newAnonymousClient()
		resp, err := client.postJSON(cmd.Context(), "/auth/login", map[string]string{
			"email":    args[0],
			"password": password,
		})
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if err := saveToken(result["token"]); err != nil {
			return fmt.Errorf("saving session: %w", err)
		}
		printSuccess("Logged in as %s (session valid until %s)", args[0], result["expiresAt"])
		return nil
	},
}

func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	data, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(data), nil
}

// --- upload ---

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload a PDF or image for text extraction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading file: %w", err)
		}

		mimeType := mimeTypeForFile(path)
		if mimeType == "" {
			return fmt.Errorf("unsupported file type %q (supported: .pdf, .png, .jpg, .jpeg)", filepath.Ext(path))
		}

		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(path)))
		hdr.Set("Content-Type", mimeType)
		part, err := mw.CreatePart(hdr)
		if err != nil {
			return err
		}
		if _, err := part.Write(data); err != nil {
			return err
		}
		mw.Close()

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.do(cmd.Context(), "POST", "/documents", mw.FormDataContentType(), &buf)
		if err != nil {
			return err
		}

		var doc struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		}
		if err := decodeJSON(resp, &doc); err != nil {
			return err
		}

		printSuccess("Uploaded %s (document %s, status %s)", filepath.Base(path), doc.ID, doc.Status)
		printStatus("Tip", "run \"doctalk docs\" to watch the processing status")
		return nil
	},
}

func mimeTypeForFile(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return ""
	}
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check whether the doctalk server is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newAnonymousClient()
		resp, err := client.get(cmd.Context(), "/health")
		if err != nil {
			printWarning("Server is not reachable: %v", err)
			return nil
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}
		printSuccess("Server is up at %s", client.baseURL)
		return nil
	},
}

// --- docs ---

var docsCmd = &cobra.Command{
	Use:   "docs [document-id]",
	Short: "List your uploaded documents, or show one in detail",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if len(args) == 1 {
			return showDocument(cmd, client, args[0])
		}

		resp, err := client.get(cmd.Context(), "/documents")
		if err != nil {
			return err
		}

		var docs []struct {
			ID        string `json:"id"`
			FileName  string `json:"fileName"`
			Status    string `json:"status"`
			CreatedAt string `json:"createdAt"`
		}
		if err := decodeJSON(resp, &docs); err != nil {
			return err
		}

		if len(docs) == 0 {
			fmt.Println("No documents uploaded yet.")
			return nil
		}

		for _, d := range docs {
			fmt.Printf("%s  %-10s  %s  %s\n",
				colorize(colorCyan, d.ID[:8]),
				statusColor(d.Status),
				d.CreatedAt,
				d.FileName,
			)
		}
		return nil
	},
}

func showDocument(cmd *cobra.Command, client *apiClient, documentID string) error {
	resp, err := client.get(cmd.Context(), "/documents/"+url.PathEscape(documentID))
	if err != nil {
		return err
	}

	var doc struct {
		ID            string `json:"id"`
		FileName      string `json:"fileName"`
		MimeType      string `json:"mimeType"`
		Status        string `json:"status"`
		CreatedAt     string `json:"createdAt"`
		ExtractedText string `json:"extractedText"`
	}
	if err := decodeJSON(resp, &doc); err != nil {
		return err
	}

	fmt.Printf("ID:       %s\n", doc.ID)
	fmt.Printf("File:     %s (%s)\n", doc.FileName, doc.MimeType)
	fmt.Printf("Status:   %s\n", statusColor(doc.Status))
	fmt.Printf("Uploaded: %s\n", doc.CreatedAt)
	if doc.ExtractedText != "" {
		fmt.Printf("\n%s\n%s\n", colorize(colorBold, "Extracted text"), doc.ExtractedText)
	}
	return nil
}

func statusColor(status string) string {
	switch status {
	case "COMPLETED":
		return colorize(colorGreen, status)
	case "FAILED":
		return colorize(colorRed, status)
	default:
		return colorize(colorYellow, status)
	}
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <document-id> <question>",
	Short: "Ask a question about a processed document",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		documentID := args[0]
		question := strings.Join(args[1:], " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.postJSON(cmd.Context(), "/documents/"+url.PathEscape(documentID)+"/messages", map[string]string{
			"content": question,
		})
		if err != nil {
			return err
		}
		if resp.StatusCode == 425 {
			resp.Body.Close()
			printWarning("Document is still being processed; try again shortly.")
			return nil
		}

		var msg struct {
			Content string `json:"content"`
		}
		if err := decodeJSON(resp, &msg); err != nil {
			return err
		}

		fmt.Println(msg.Content)
		return nil
	},
}

// --- history ---

var historyCmd = &cobra.Command{
	Use:   "history <document-id>",
	Short: "Show the chat history of a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		cursor := ""
		for {
			path := fmt.Sprintf("/documents/%s/messages?limit=%d", url.PathEscape(args[0]), limit)
			if cursor != "" {
				path += "&cursor=" + url.QueryEscape(cursor)
			}
			resp, err := client.get(cmd.Context(), path)
			if err != nil {
				return err
			}

			var page struct {
				Messages []struct {
					Role      string `json:"role"`
					Content   string `json:"content"`
					CreatedAt string `json:"createdAt"`
				} `json:"data"`
				NextCursor string `json:"nextCursor"`
			}
			if err := decodeJSON(resp, &page); err != nil {
				return err
			}

			for _, m := range page.Messages {
				label := colorize(colorBold, "You")
				if m.Role == "ASSISTANT" {
					label = colorize(colorCyan, "Assistant")
				}
				fmt.Printf("%s  %s\n%s\n\n", label, m.CreatedAt, m.Content)
			}

			if page.NextCursor == "" {
				return nil
			}
			cursor = page.NextCursor
		}
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "page size used when fetching the history")
}

// --- download ---

var downloadCmd = &cobra.Command{
	Use:   "download <document-id>",
	Short: "Download the extracted text and chat history as a PDF",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			output = args[0] + ".pdf"
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/documents/"+url.PathEscape(args[0])+"/download")
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}

		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()

		if _, err := io.Copy(f, resp.Body); err != nil {
			return fmt.Errorf("writing output file: %w", err)
		}

		printSuccess("Saved transcript to %s", output)
		return nil
	},
}

func init() {
	downloadCmd.Flags().String("output", "", "output file path (default: <document-id>.pdf)")
}
