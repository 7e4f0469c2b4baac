// Package config 读取各阶段的 .env 配置（flat key-value），并与内置默认值
// 合并为阶段配置结构。实现层直接消费，不再做二次默认/优先级判断。
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

// 各阶段配置文件名（位于 <root>/config/ 下；缺失时全部走默认值）。
const (
	ParseEnvFile = "parsing.env"
	TTSEnvFile   = "tts-piper_config.env"
	RVCEnvFile   = "rvc_config.env"
)

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
	}
	return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// ParseConfig 是 stage 1（周报 JSON → 脚本与图片）的最终配置。
// 路径类字段相对项目根（绝对路径原样使用）。
type ParseConfig struct {
	JSONInputDir    string
	JSONInputDirAlt string // 可选的第二输入目录；为空表示没有
	OutputBase      string
	SectionsSubdir  string
	ImagesSubdir    string
	LedgerFile      string

	TimeoutSec       int
	Retries          int
	UserAgent        string
	Referer          string
	EnableHTMLScrape bool
}

// TTSConfig 是 stage 2（piper 合成）的最终配置。
type TTSConfig struct {
	ScriptsDir string
	ModelsDir  string
	OutputDir  string
	LedgerFile string

	Langs     []string // 为空表示处理全部语言目录
	WeekGlob  string
	WeekRegex string // glob 无命中时的回退；为空表示不回退
	TextExts  []string

	PiperCmd        string // 外部命令模板（shell 词法）
	PiperExtraArgs  string // 追加到每次调用末尾
	LengthScale     string
	SentenceSilence string
}

// RVCConfig 是 stage 3（音色转换）的最终配置。
type RVCConfig struct {
	InputRoot  string
	OutputRoot string
	LedgerFile string

	PythonCmd string // 运行 infer CLI 的解释器命令模板
	InferCLI  string // infer CLI 脚本路径（相对项目根）

	CheckpointDir    string
	Checkpoint       string // 显式指定则跳过自动选择
	CheckpointPrefix string

	F0Method     string
	RMSMixRate   string
	Protect      string
	FilterRadius string

	WavGlobs    []string
	WeekGlob    string
	WeekRegex   string
	WeeklyLangs []string
	AddonLangs  []string
}

// DefaultUserAgent 与原流水线保持一致的抓取 UA。
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124 Safari/537.36"

// LoadParse 读取 <confDir>/parsing.env 并合并默认值。
func LoadParse(confDir string) (ParseConfig, error) {
	path := filepath.Join(confDir, ParseEnvFile)
	kv, err := readEnvFile(path)
	if err != nil {
		return ParseConfig{}, &Error{Code: ErrCodeInvalid, Path: path, Err: err}
	}

	cfg := ParseConfig{
		JSONInputDir:     getStr(kv, "JSON_INPUT_DIR", "data/step0_json"),
		JSONInputDirAlt:  getStr(kv, "JSON_INPUT_DIR_ALT", ""),
		OutputBase:       getStr(kv, "OUTPUT_BASE", "data/step1_scripts"),
		SectionsSubdir:   getStr(kv, "SECTIONS_SUBDIR", "sections"),
		ImagesSubdir:     getStr(kv, "IMAGES_SUBDIR", "image"),
		LedgerFile:       getStr(kv, "LOG_FILE", "data/step1_scripts/parsed.log"),
		UserAgent:        getStr(kv, "USER_AGENT", DefaultUserAgent),
		Referer:          getStr(kv, "REFERER", "https://www.tradingview.com/"),
		EnableHTMLScrape: getBool(kv, "ENABLE_HTML_SCRAPE", true),
	}

	cfg.TimeoutSec, err = getInt(kv, "TIMEOUT_SEC", 20)
	if err != nil {
		return ParseConfig{}, &Error{Code: ErrCodeInvalid, Path: path, Err: err}
	}
	cfg.Retries, err = getInt(kv, "RETRIES", 2)
	if err != nil {
		return ParseConfig{}, &Error{Code: ErrCodeInvalid, Path: path, Err: err}
	}
	if cfg.TimeoutSec < 1 {
		return ParseConfig{}, &Error{Code: ErrCodeInvalid, Path: path, Err: fmt.Errorf("TIMEOUT_SEC 必须 >= 1，实际 %d", cfg.TimeoutSec)}
	}
	if cfg.Retries < 0 {
		return ParseConfig{}, &Error{Code: ErrCodeInvalid, Path: path, Err: fmt.Errorf("RETRIES 不能为负，实际 %d", cfg.Retries)}
	}
	return cfg, nil
}

// LoadTTS 读取 <confDir>/tts-piper_config.env 并合并默认值。
func LoadTTS(confDir string) (TTSConfig, error) {
	path := filepath.Join(confDir, TTSEnvFile)
	kv, err := readEnvFile(path)
	if err != nil {
		return TTSConfig{}, &Error{Code: ErrCodeInvalid, Path: path, Err: err}
	}

	cfg := TTSConfig{
		ScriptsDir:      getStr(kv, "SCRIPTS_DIR", "data/step1_scripts"),
		ModelsDir:       getStr(kv, "MODELS_DIR", "tts_piper/models"),
		OutputDir:       getStr(kv, "OUTPUT_DIR", "data/step2_wav-tts"),
		LedgerFile:      getStr(kv, "LOG_FILE", "data/step1_scripts/pipered.log"),
		Langs:           getList(kv, "LANGS", nil),
		WeekGlob:        getStr(kv, "WEEK_GLOB", "*[0-9][0-9][0-9][0-9]w[0-9][0-9]"),
		WeekRegex:       getStr(kv, "WEEK_REGEX", ""),
		TextExts:        getList(kv, "TEXT_EXTS", []string{".txt"}),
		PiperCmd:        getStr(kv, "PIPER_CMD", "python3 -m piper"),
		PiperExtraArgs:  getStr(kv, "PIPER_EXTRA_ARGS", ""),
		LengthScale:     getStr(kv, "LENGTH_SCALE", "0.9"),
		SentenceSilence: getStr(kv, "SENTENCE_SILENCE", "0.4"),
	}
	if strings.TrimSpace(cfg.PiperCmd) == "" {
		return TTSConfig{}, &Error{Code: ErrCodeInvalid, Path: path, Err: fmt.Errorf("PIPER_CMD 不能为空")}
	}
	return cfg, nil
}

// LoadRVC 读取 <confDir>/rvc_config.env 并合并默认值。
func LoadRVC(confDir string) (RVCConfig, error) {
	path := filepath.Join(confDir, RVCEnvFile)
	kv, err := readEnvFile(path)
	if err != nil {
		return RVCConfig{}, &Error{Code: ErrCodeInvalid, Path: path, Err: err}
	}

	cfg := RVCConfig{
		InputRoot:        getStr(kv, "RVC_INPUT_ROOT", "data/step2_wav-tts"),
		OutputRoot:       getStr(kv, "RVC_OUTPUT_ROOT", "data/step3_wav-converted"),
		LedgerFile:       getStr(kv, "RVC_LOG", "data/step3_wav-converted/rvced.log"),
		PythonCmd:        getStr(kv, "RVC_PYTHON_CMD", "python3"),
		InferCLI:         getStr(kv, "RVC_INFER_CLI", "rvc/infer_cli.py"),
		CheckpointDir:    getStr(kv, "RVC_CHECKPOINT_DIR", "rvc/CHECKPOINT"),
		Checkpoint:       getStr(kv, "RVC_CHECKPOINT", ""),
		CheckpointPrefix: getStr(kv, "RVC_CKPT_PREFIX", ""),
		F0Method:         getStr(kv, "F0_METHOD", "rmvpe"),
		RMSMixRate:       getStr(kv, "RMS_MIX_RATE", "0.25"),
		Protect:          getStr(kv, "PROTECT", "0.33"),
		FilterRadius:     getStr(kv, "FILTER_RADIUS", "3"),
		WavGlobs:         getList(kv, "RVC_WAV_GLOBS", []string{"*.wav", "*.WAV"}),
		WeekGlob:         getStr(kv, "WEEK_GLOB", "*????w??"),
		WeekRegex:        getStr(kv, "WEEK_REGEX", `^\d{4}w\d{2}$`),
		WeeklyLangs:      getList(kv, "RVC_WEEKLY_LANGS", nil),
		AddonLangs:       getList(kv, "RVC_ADDON_LANGS", nil),
	}
	if strings.TrimSpace(cfg.PythonCmd) == "" {
		return RVCConfig{}, &Error{Code: ErrCodeInvalid, Path: path, Err: fmt.Errorf("RVC_PYTHON_CMD 不能为空")}
	}
	return cfg, nil
}

// Abs 以 root 为基准，把配置里的路径变为 clean + absolute。
func Abs(root, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if p == "" || p == "." {
		return filepath.Clean(root)
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(root, p))
}

// readEnvFile 读取 .env 文件为 map；文件不存在不算错误（返回空 map）。
func readEnvFile(path string) (map[string]string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	return godotenv.Read(path)
}

func getStr(kv map[string]string, key, def string) string {
	v := strings.TrimSpace(kv[key])
	if v == "" {
		return def
	}
	return v
}

func getInt(kv map[string]string, key string, def int) (int, error) {
	v := strings.TrimSpace(kv[key])
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s 必须是整数，实际 %q", key, v)
	}
	return n, nil
}

func getBool(kv map[string]string, key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(kv[key]))
	if v == "" {
		return def
	}
	return v == "true" || v == "1" || v == "yes"
}

// getList 解析逗号分隔列表；空串与纯空白项被丢弃。
func getList(kv map[string]string, key string, def []string) []string {
	v, ok := kv[key]
	if !ok || strings.TrimSpace(v) == "" {
		return append([]string(nil), def...)
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
