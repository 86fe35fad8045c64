package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/yoospeak-speech/internal/services"
	"github.com/yoockh/yoospeak-speech/internal/speech"
	"github.com/yoockh/yoospeak-speech/internal/utils"
)

type RecognitionHandler struct {
	svc services.RecognitionService
}

func NewRecognitionHandler(svc services.RecognitionService) *RecognitionHandler {
	return &RecognitionHandler{svc: svc}
}

type RecognizeRequest struct {
	AudioBase64 string `json:"audio_base64"` // raw base64 or a data: URL
	SourceURI   string `json:"source_uri"`   // gs://bucket/object
	Encoding    string `json:"encoding" binding:"required"`
	SampleRate  int    `json:"sample_rate"`

	LanguageCode         string   `json:"language_code"`
	MaxAlternatives      int      `json:"max_alternatives"`
	ProfanityFilter      bool     `json:"profanity_filter"`
	SpeechContexts       []string `json:"speech_contexts"`
	AutomaticPunctuation bool     `json:"automatic_punctuation"`
}

type RecognizeResponse struct {
	Transcript string          `json:"transcript"`
	Confidence float64         `json:"confidence"`
	Results    []speech.Result `json:"results"`
}

func (r RecognizeRequest) input(op string) (services.RecognizeInput, error) {
	in := services.RecognizeInput{
		SourceURI:  strings.TrimSpace(r.SourceURI),
		Encoding:   speech.Encoding(strings.ToUpper(strings.TrimSpace(r.Encoding))),
		SampleRate: r.SampleRate,
		Options: speech.RecognizeOptions{
			LanguageCode:         r.LanguageCode,
			MaxAlternatives:      r.MaxAlternatives,
			ProfanityFilter:      r.ProfanityFilter,
			SpeechContexts:       r.SpeechContexts,
			AutomaticPunctuation: r.AutomaticPunctuation,
		},
	}
	if r.AudioBase64 != "" {
		b, err := utils.DecodeAudioBase64(r.AudioBase64)
		if err != nil {
			return in, utils.E(utils.CodeInvalidArgument, op, "invalid audio_base64", err)
		}
		in.Content = b
	}
	return in, nil
}

func (h *RecognitionHandler) Recognize(c *gin.Context) {
	const op = "RecognitionHandler.Recognize"

	var req RecognizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid request body", err))
		return
	}
	in, err := req.input(op)
	if err != nil {
		writeError(c, err)
		return
	}

	results, err := h.svc.Recognize(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}

	best, _ := speech.Best(results)
	c.JSON(http.StatusOK, RecognizeResponse{
		Transcript: best.Transcript,
		Confidence: best.Confidence,
		Results:    results,
	})
}

func (h *RecognitionHandler) StartLongRunning(c *gin.Context) {
	const op = "RecognitionHandler.StartLongRunning"

	var req RecognizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid request body", err))
		return
	}
	in, err := req.input(op)
	if err != nil {
		writeError(c, err)
		return
	}

	job, err := h.svc.StartLongRunning(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, job)
}

func (h *RecognitionHandler) GetOperation(c *gin.Context) {
	job, err := h.svc.GetOperation(c.Request.Context(), c.Param("name"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}
