package channels

import (
	"html/template"

	"github.com/dhawanitbhatnagar/chatbot-app/pkg/widget"
)

type categoryOption struct {
	Name   string
	Accept string
}

type pageData struct {
	SessionID  string
	BodyClass  string
	Marker     string
	Open       bool
	Auth       bool
	Categories []categoryOption
}

type loginData struct {
	Error string
}

type unansweredData struct {
	State string
	Error string
	Rows  []widget.Row
}

const baseStyle = `
:root{
  --bg-primary:#0f1117;--bg-secondary:#161822;--bg-tertiary:#1c1f2e;
  --bg-input:#12141d;--border:#252836;--border-focus:#6c5ce7;
  --accent:#6c5ce7;--accent-hover:#5a4bd1;--accent-glow:rgba(108,92,231,.15);
  --text-primary:#e8e6f0;--text-secondary:#8b8a97;--text-muted:#5c5b66;
  --error:#f87171;--error-bg:rgba(248,113,113,.08);
  --radius:12px;
}
*{box-sizing:border-box;margin:0;padding:0}
html,body{height:100%}
body{
  font-family:system-ui,-apple-system,sans-serif;
  background:var(--bg-primary);color:var(--text-primary);
  -webkit-font-smoothing:antialiased;
}
a{color:var(--accent)}
button{font-family:inherit;cursor:pointer}
`

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width,initial-scale=1">
<title>Chatbot</title>
<style>` + baseStyle + `
.launcher{
  position:fixed;right:24px;bottom:24px;width:56px;height:56px;border-radius:50%;
  background:var(--accent);color:#fff;border:none;font-size:22px;
  box-shadow:0 8px 24px rgba(0,0,0,.35);
}
.launcher:hover{background:var(--accent-hover)}
.panel{
  position:fixed;right:24px;bottom:96px;width:380px;max-width:calc(100vw - 48px);height:560px;
  display:none;flex-direction:column;
  background:var(--bg-secondary);border:1px solid var(--border);border-radius:16px;overflow:hidden;
}
body.` + widget.DefaultMarker + ` .panel{display:flex}
.panel header{padding:14px 16px;border-bottom:1px solid var(--border);display:flex;justify-content:space-between;align-items:center}
.panel header h1{font-size:15px;font-weight:600}
.panel header a{font-size:12px;color:var(--text-muted);margin-left:10px}
.log{flex:1;overflow-y:auto;padding:16px;display:flex;flex-direction:column;gap:10px}
.msg{max-width:85%;padding:10px 12px;border-radius:var(--radius);font-size:14px;line-height:1.5;word-wrap:break-word}
.msg.user{align-self:flex-end;background:var(--accent);color:#fff}
.msg.bot{align-self:flex-start;background:var(--bg-tertiary)}
.msg .time{display:block;font-size:11px;opacity:.6;margin-top:4px}
.msg img,.msg video{max-width:100%;border-radius:8px;margin-bottom:6px}
.msg audio{width:100%;margin-bottom:6px}
.msg pre{background:var(--bg-input);padding:8px;border-radius:6px;overflow-x:auto}
.pending{padding:8px 16px;border-top:1px solid var(--border);font-size:13px;display:none;gap:8px;align-items:center}
.pending.active{display:flex}
.pending img,.pending video{max-height:64px;border-radius:6px}
.composer{display:flex;gap:8px;padding:12px;border-top:1px solid var(--border);position:relative}
.composer input[type=text]{
  flex:1;padding:10px 12px;background:var(--bg-input);border:1px solid var(--border);
  border-radius:8px;color:var(--text-primary);font-size:14px;outline:none;
}
.composer input[type=text]:focus{border-color:var(--border-focus);box-shadow:0 0 0 3px var(--accent-glow)}
.composer button{padding:0 12px;border-radius:8px;border:1px solid var(--border);background:var(--bg-tertiary);color:var(--text-primary)}
.composer button.send{background:var(--accent);border:none;color:#fff}
.menu{position:absolute;bottom:56px;left:12px;display:none;flex-direction:column;background:var(--bg-tertiary);border:1px solid var(--border);border-radius:8px;overflow:hidden}
.menu.open{display:flex}
.menu button{border:none;border-radius:0;padding:8px 14px;text-align:left;text-transform:capitalize}
.error{color:var(--error);font-size:12px;padding:0 16px 8px}
</style>
</head>
<body class="{{.BodyClass}}" data-marker="{{.Marker}}">
<div class="panel" id="panel">
  <header>
    <h1>Chatbot</h1>
    <nav><a href="/unanswered">Unanswered</a>{{if .Auth}}<a href="/logout">Log out</a>{{end}}</nav>
  </header>
  <div class="log" id="log"></div>
  <div class="pending" id="pending">
    <span id="pending-preview"></span>
    <button type="button" id="detach" title="Remove">&times;</button>
  </div>
  <div class="error" id="error"></div>
  <form class="composer" id="composer" autocomplete="off">
    <button type="button" id="attach" title="Attach">+</button>
    <div class="menu" id="menu">
      {{range .Categories}}<button type="button" data-category="{{.Name}}" data-accept="{{.Accept}}">{{.Name}}</button>
      {{end}}
    </div>
    <input type="file" id="file" hidden>
    <input type="text" id="text" placeholder="Type a message...">
    <button type="submit" class="send">Send</button>
  </form>
</div>
<button class="launcher" id="launcher" title="Chat">&#128172;</button>
<script>
const marker = document.body.dataset.marker;
const logEl = document.getElementById("log");
const pendingEl = document.getElementById("pending");
const previewEl = document.getElementById("pending-preview");
const errorEl = document.getElementById("error");
const fileEl = document.getElementById("file");
const menuEl = document.getElementById("menu");
const textEl = document.getElementById("text");
const seen = new Set();
let category = "";

function scrollToLatest(){ logEl.scrollTop = logEl.scrollHeight; }

function addMsg(m){
  if (seen.has(m.index)) return;
  seen.add(m.index);
  const el = document.createElement("div");
  el.className = "msg " + m.sender;
  if (m.attachment) {
    const att = document.createElement("div");
    att.innerHTML = m.attachment.preview;
    el.appendChild(att);
  }
  const body = document.createElement("div");
  if (m.sender === "bot" && m.html) body.innerHTML = m.html; else body.textContent = m.text;
  el.appendChild(body);
  const t = document.createElement("span");
  t.className = "time";
  t.textContent = m.time;
  el.appendChild(t);
  logEl.appendChild(el);
  scrollToLatest();
}

function setOpen(open){ document.body.classList.toggle(marker, open); if (open) textEl.focus(); }

function showPending(p){
  if (!p) { pendingEl.classList.remove("active"); previewEl.innerHTML = ""; return; }
  previewEl.innerHTML = p.preview;
  pendingEl.classList.add("active");
}

async function api(path, opts){
  const r = await fetch(path, opts);
  if (r.status === 401) { location.href = "/login"; throw new Error("unauthorized"); }
  return r;
}

document.getElementById("launcher").addEventListener("click", async () => {
  const open = !document.body.classList.contains(marker);
  setOpen(open);
  await api("/chat/visibility", {method:"POST", headers:{"Content-Type":"application/json"}, body:JSON.stringify({open})});
});

document.getElementById("attach").addEventListener("click", () => menuEl.classList.toggle("open"));
menuEl.querySelectorAll("button").forEach(b => b.addEventListener("click", () => {
  category = b.dataset.category;
  fileEl.accept = b.dataset.accept;
  menuEl.classList.remove("open");
  fileEl.click();
}));

fileEl.addEventListener("change", async () => {
  if (!fileEl.files.length) return;
  const fd = new FormData();
  fd.append("file", fileEl.files[0]);
  fd.append("category", category);
  fileEl.value = "";
  errorEl.textContent = "";
  const r = await api("/chat/attachment", {method:"POST", body:fd});
  const body = await r.json();
  if (!r.ok) { errorEl.textContent = body.error; return; }
  showPending(body);
});

document.getElementById("detach").addEventListener("click", async () => {
  await api("/chat/attachment", {method:"DELETE"});
  showPending(null);
});

document.getElementById("composer").addEventListener("submit", async (e) => {
  e.preventDefault();
  const message = textEl.value;
  textEl.value = "";
  const r = await api("/chat/send", {method:"POST", headers:{"Content-Type":"application/json"}, body:JSON.stringify({message})});
  if (r.status === 202) showPending(null);
});

async function poll(){
  const r = await api("/chat/poll");
  const s = await r.json();
  s.messages.forEach(addMsg);
  showPending(s.pending);
  setOpen(s.open);
}

function connect(){
  const proto = location.protocol === "https:" ? "wss://" : "ws://";
  const ws = new WebSocket(proto + location.host + "/chat/ws");
  ws.onmessage = (e) => {
    const ev = JSON.parse(e.data);
    if (ev.event === "message") addMsg(ev.message);
    else if (ev.event === "scroll") scrollToLatest();
    else if (ev.event === "visibility") setOpen(ev.open);
  };
  ws.onclose = () => setTimeout(() => poll().then(connect), 2000);
}

poll().then(connect);
</script>
</body>
</html>
`))

var loginTmpl = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width,initial-scale=1">
<title>Chatbot - Login</title>
<style>` + baseStyle + `
body{display:flex;align-items:center;justify-content:center}
.login-card{width:100%;max-width:380px;padding:40px 32px;background:var(--bg-secondary);border:1px solid var(--border);border-radius:16px}
.login-card h1{font-size:20px;font-weight:600;text-align:center;margin-bottom:24px}
.login-error{padding:10px 14px;margin-bottom:20px;background:var(--error-bg);border:1px solid rgba(248,113,113,.2);border-radius:8px;font-size:13px;color:var(--error)}
.field{margin-bottom:16px}
.field label{display:block;font-size:13px;font-weight:500;color:var(--text-secondary);margin-bottom:6px}
.field input{width:100%;padding:11px 14px;background:var(--bg-input);border:1px solid var(--border);border-radius:8px;color:var(--text-primary);font-size:14px;outline:none}
.field input:focus{border-color:var(--border-focus);box-shadow:0 0 0 3px var(--accent-glow)}
.login-btn{width:100%;padding:12px;margin-top:8px;background:var(--accent);color:#fff;border:none;border-radius:8px;font-size:14px;font-weight:500}
.login-btn:hover{background:var(--accent-hover)}
</style>
</head>
<body>
<form class="login-card" method="post" action="/login">
  <h1>Chatbot</h1>
  {{with .Error}}<div class="login-error">{{.}}</div>{{end}}
  <div class="field"><label for="username">Username</label><input id="username" name="username" autofocus></div>
  <div class="field"><label for="password">Password</label><input id="password" name="password" type="password"></div>
  <button class="login-btn" type="submit">Sign in</button>
</form>
</body>
</html>
`))

var unansweredTmpl = template.Must(template.New("unanswered").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width,initial-scale=1">
<title>Unanswered questions</title>
<style>` + baseStyle + `
main{max-width:960px;margin:0 auto;padding:32px 24px}
h1{font-size:20px;font-weight:600;margin-bottom:20px}
.status{color:var(--text-secondary)}
.status.failed{color:var(--error)}
table{width:100%;border-collapse:collapse;background:var(--bg-secondary);border:1px solid var(--border);border-radius:var(--radius)}
th,td{padding:10px 14px;text-align:left;border-bottom:1px solid var(--border);font-size:14px;vertical-align:top}
th{color:var(--text-secondary);font-weight:500}
td img{max-width:120px;border-radius:6px}
</style>
</head>
<body>
<main>
<h1>Unanswered questions</h1>
{{if eq .State "loading"}}<p class="status">Loading...</p>
{{else if eq .State "failed"}}<p class="status failed">{{.Error}}</p>
{{else}}<table>
  <thead><tr><th>#</th><th>Question</th><th>Image</th><th>Action</th></tr></thead>
  <tbody>
  {{range .Rows}}<tr>
    <td>{{.Index}}</td>
    <td>{{.Question}}</td>
    <td>{{with .ImageURL}}<img src="{{.}}" alt="">{{end}}</td>
    <td><a href="{{.EditLink}}">Update</a></td>
  </tr>
  {{end}}</tbody>
</table>
{{end}}
<p><a href="/">Back to chat</a></p>
</main>
</body>
</html>
`))
